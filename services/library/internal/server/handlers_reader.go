package server

import (
	"net/http"

	"libmgmt/pkg/domain"
)

type searchRequest struct {
	Keyword string `json:"keyword" validate:"max=200"`
	Page    int    `json:"page"`
}

type borrowRequest struct {
	InventoryID uint `json:"inventoryId" validate:"required"`
}

type returnRequest struct {
	RecordID uint `json:"recordId" validate:"required"`
}

type circulationResponse struct {
	Success bool       `json:"success"`
	Record  recordView `json:"record"`
}

func (s *Server) recordView(rec domain.BorrowRecord) recordView {
	return newRecordView(rec, s.app.Now())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, user domain.User) {
	sum, err := s.app.Summary(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"borrowed":       sum.Borrowed,
		"soonOverdue":    sum.SoonOverdue,
		"overdue":        sum.Overdue,
		"remainingQuota": sum.RemainingQuota,
	})
}

func (s *Server) handleBorrowStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	counts, err := s.app.BorrowStats(r.Context(), user, days)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(counts))
	for _, c := range counts {
		items = append(items, map[string]any{"date": c.Date, "count": c.Count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleTopBooks(w http.ResponseWriter, r *http.Request, _ domain.User) {
	top, err := s.app.TopBooks(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(top))
	for _, b := range top {
		items = append(items, map[string]any{"title": b.Title, "count": b.Count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleActiveBorrows(w http.ResponseWriter, r *http.Request, user domain.User) {
	active, err := s.app.ActiveBorrows(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records":   mapViews(active.Records, s.recordView),
		"remaining": active.Remaining,
	})
}

func (s *Server) handleSearchMyRecords(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.app.SearchMyRecords(r.Context(), user, req.Keyword, req.Page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse("records", page, s.recordView))
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	page, err := s.app.SearchBooks(r.Context(), req.Keyword, req.Page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse("books", page, func(l domain.BookListing) bookListingView {
		return bookListingView{bookView: newBookView(l.Book), InventoryCount: l.InventoryCount}
	}))
}

func (s *Server) handleListCopies(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	book, copies, err := s.app.ListCopies(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"book": newBookView(book),
		"copies": mapViews(copies, func(c domain.CopyAvailability) copyView {
			return copyView{inventoryView: newInventoryView(c.Inventory), DueDate: c.DueDate}
		}),
	})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req borrowRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.app.Borrow(r.Context(), user, req.InventoryID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, circulationResponse{Success: true, Record: s.recordView(rec)})
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req returnRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.app.Return(r.Context(), user, req.RecordID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, circulationResponse{Success: true, Record: s.recordView(rec)})
}
