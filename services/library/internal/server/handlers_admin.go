package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"libmgmt/internal/security"
	"libmgmt/pkg/bulkcsv"
	"libmgmt/pkg/domain"
	"libmgmt/services/library/internal/app"
)

type addReaderRequest struct {
	Username       string `json:"username" validate:"required"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email" validate:"omitempty,email"`
	Password       string `json:"password" validate:"required"`
	IsStaff        bool   `json:"isStaff"`
	MaxBorrowLimit *int   `json:"maxBorrowLimit"`
}

type editReaderRequest struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Email          *string `json:"email" validate:"omitempty,email"`
	IsStaff        *bool   `json:"isStaff"`
	MaxBorrowLimit *int    `json:"maxBorrowLimit"`
	Password       *string `json:"password"`
}

type categoryRequest struct {
	CategoryNumber string `json:"categoryNumber" validate:"required"`
	Name           string `json:"name"`
}

type bookRequest struct {
	Title          string `json:"title" validate:"required"`
	Author         string `json:"author"`
	Publisher      string `json:"publisher"`
	PublishDate    string `json:"publishDate"`
	IndexNumber    string `json:"indexNumber" validate:"required"`
	CategoryNumber string `json:"categoryNumber" validate:"required"`
	Description    string `json:"description"`
}

type inventoryRequest struct {
	BookID   uint   `json:"bookId" validate:"required"`
	Status   *int   `json:"status" validate:"required"`
	Location string `json:"location"`
}

type inventoryUpdateRequest struct {
	Status   *int   `json:"status" validate:"required"`
	Location string `json:"location"`
}

// readers

func (s *Server) handleSearchReaders(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.app.SearchReaders(r.Context(), req.Keyword, req.Page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse("readers", page, newReaderView))
}

func (s *Server) handleAddReader(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req addReaderRequest
	if !s.decode(w, r, &req) {
		return
	}
	reader, err := s.app.AddReader(r.Context(), user, app.ReaderInput{
		AccountInput: app.AccountInput{
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Password:  req.Password,
		},
		IsStaff:        req.IsStaff,
		MaxBorrowLimit: req.MaxBorrowLimit,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReaderView(reader))
}

func (s *Server) handleGetReader(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	reader, err := s.app.GetReader(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReaderView(reader))
}

func (s *Server) handleEditReader(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req editReaderRequest
	if !s.decode(w, r, &req) {
		return
	}
	reader, err := s.app.EditReader(r.Context(), user, id, app.ReaderUpdate{
		ProfileUpdate: app.ProfileUpdate{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		},
		IsStaff:        req.IsStaff,
		MaxBorrowLimit: req.MaxBorrowLimit,
		Password:       req.Password,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReaderView(reader))
}

func (s *Server) handleDisableReader(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.setReaderStatus(w, r, user, s.app.DisableReader)
}

func (s *Server) handleEnableReader(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.setReaderStatus(w, r, user, s.app.EnableReader)
}

type readerStatusFunc func(ctx context.Context, actor domain.User, id uint) (domain.Reader, error)

func (s *Server) setReaderStatus(w http.ResponseWriter, r *http.Request, user domain.User, fn readerStatusFunc) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	reader, err := fn(r.Context(), user, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReaderView(reader))
}

// books

func (s *Server) handleAdminSearchBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.handleSearchBooks(w, r, user)
}

func (in bookRequest) input() app.BookInput {
	return app.BookInput{
		Title:          in.Title,
		Author:         in.Author,
		Publisher:      in.Publisher,
		PublishDate:    in.PublishDate,
		IndexNumber:    in.IndexNumber,
		CategoryNumber: in.CategoryNumber,
		Description:    in.Description,
	}
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req bookRequest
	if !s.decode(w, r, &req) {
		return
	}
	book, err := s.app.CreateBook(r.Context(), user, req.input())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBookView(book))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	book, err := s.app.GetBook(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookView(book))
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req bookRequest
	if !s.decode(w, r, &req) {
		return
	}
	book, err := s.app.UpdateBook(r.Context(), user, id, req.input())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookView(book))
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.deleteByID(w, r, user, s.app.DeleteBook)
}

// categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, _ domain.User) {
	categories, err := s.app.ListCategories(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": mapViews(categories, newCategoryView),
		"count": len(categories),
	})
}

func (s *Server) handleSearchCategories(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.app.SearchCategories(r.Context(), req.Keyword, req.Page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse("categories", page, newCategoryView))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req categoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.app.CreateCategory(r.Context(), user, app.CategoryInput{CategoryNumber: req.CategoryNumber, Name: req.Name})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryView(c))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	c, err := s.app.GetCategory(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryView(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req categoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.app.UpdateCategory(r.Context(), user, id, app.CategoryInput{CategoryNumber: req.CategoryNumber, Name: req.Name})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryView(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.deleteByID(w, r, user, s.app.DeleteCategory)
}

// inventory

func (s *Server) handleSearchInventories(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.app.SearchInventories(r.Context(), req.Keyword, req.Page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse("inventories", page, newInventoryView))
}

func (s *Server) handleCreateInventory(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req inventoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	inv, err := s.app.CreateInventory(r.Context(), user, app.InventoryInput{
		BookID:   req.BookID,
		Status:   domain.InventoryStatus(*req.Status),
		Location: req.Location,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newInventoryView(inv))
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	inv, err := s.app.GetInventory(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryView(inv))
}

func (s *Server) handleUpdateInventory(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req inventoryUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	inv, err := s.app.UpdateInventory(r.Context(), user, id, app.InventoryUpdate{
		Status:   domain.InventoryStatus(*req.Status),
		Location: req.Location,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryView(inv))
}

func (s *Server) handleDeleteInventory(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.deleteByID(w, r, user, s.app.DeleteInventory)
}

// records and logs

func (s *Server) handleSearchRecords(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.app.SearchRecords(r.Context(), req.Keyword, req.Page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse("records", page, s.recordView))
}

func (s *Server) handleSearchLogs(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.app.SearchLogs(r.Context(), req.Keyword, req.Page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse("logs", page, newLogView))
}

// imports

func (s *Server) handleImport(kind bulkcsv.Kind) authHandler {
	return func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !s.allowRate(w, r, s.importLimiter, "too many imports") {
			s.audit(r, security.EventAdminMutation, security.OutcomeRateLimited, "user_id", user.ID)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			writeError(w, r, http.StatusBadRequest, "file is required (field: file)")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid form data")
			return
		}
		res, err := s.app.Import(r.Context(), user, kind, header.Filename, data)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":    true,
			"kind":       res.Kind,
			"rows":       res.Rows,
			"archiveKey": res.ArchiveKey,
		})
	}
}

func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request, user domain.User, del func(ctx context.Context, actor domain.User, id uint) error) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := del(r.Context(), user, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
