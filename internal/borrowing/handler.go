// internal/borrowing/handler.go
package borrowing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookrental/internal/apperr"
	"bookrental/internal/auth"
	"bookrental/internal/catalog"
	"bookrental/internal/httpx"
	"bookrental/internal/payment"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	Book               string `json:"book"`
	ExpectedReturnDate string `json:"expected_return_date"`
}

type borrowingResponse struct {
	ID                 uuid.UUID          `json:"id"`
	BorrowDate         string             `json:"borrow_date"`
	ExpectedReturnDate string             `json:"expected_return_date"`
	ActualReturnDate   *string            `json:"actual_return_date"`
	Book               *catalog.Book      `json:"book"`
	Payments           []*payment.Payment `json:"payments"`
	User               string             `json:"user"`
}

type fineResponse struct {
	User          string          `json:"user"`
	ReturnedBook  string          `json:"returned_book"`
	FinePayment   decimal.Decimal `json:"fine_payment"`
	URLForPayment string          `json:"url_for_payment"`
}

func newBorrowingResponse(d *Details) borrowingResponse {
	resp := borrowingResponse{
		ID:                 d.ID,
		BorrowDate:         d.BorrowDate.Format(DateLayout),
		ExpectedReturnDate: d.ExpectedReturnDate.Format(DateLayout),
		Book:               d.Book,
		Payments:           d.Payments,
		User:               d.UserEmail,
	}
	if d.Payments == nil {
		resp.Payments = []*payment.Payment{}
	}
	if d.ActualReturnDate != nil {
		actual := d.ActualReturnDate.Format(DateLayout)
		resp.ActualReturnDate = &actual
	}
	return resp
}

// Routes mounts the borrowing endpoints. Every route requires a user; the
// history route is staff only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireUser(h.logger))

	r.Get("/", h.handleListBorrowings)
	r.Post("/", h.handleCreateBorrowing)
	r.Get("/{id}", h.handleGetBorrowing)
	r.Post("/{id}/return", h.handleReturnBorrowing)
	r.With(auth.RequireStaff(h.logger)).Get("/{id}/history", h.handleHistory)
	return r
}

func (h *Handler) handleListBorrowings(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	list, err := h.service.ListBorrowings(r.Context(), auth.MustPrincipal(r), f)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	resp := make([]borrowingResponse, len(list))
	for i, d := range list {
		resp[i] = newBorrowingResponse(d)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateBorrowing(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	in, err := req.toInput()
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	d, err := h.service.CreateBorrowing(r.Context(), auth.MustPrincipal(r), in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newBorrowingResponse(d))
}

func (h *Handler) handleGetBorrowing(w http.ResponseWriter, r *http.Request) {
	id, err := borrowingID(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	d, err := h.service.GetBorrowing(r.Context(), auth.MustPrincipal(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newBorrowingResponse(d))
}

func (h *Handler) handleReturnBorrowing(w http.ResponseWriter, r *http.Request) {
	id, err := borrowingID(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.service.ReturnBorrowing(r.Context(), auth.MustPrincipal(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if result.Fine != nil {
		httpx.WriteJSON(w, http.StatusOK, fineResponse{
			User:          result.Borrowing.UserEmail,
			ReturnedBook:  result.Borrowing.Book.Title,
			FinePayment:   result.Fine.Money,
			URLForPayment: result.Fine.SessionURL,
		})
		return
	}
	httpx.Detail(w, http.StatusOK, result.Message)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := borrowingID(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	events, err := h.service.History(r.Context(), auth.MustPrincipal(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}

func (req createRequest) toInput() (CreateInput, error) {
	var in CreateInput
	errs := apperr.Fields{}

	if req.Book == "" {
		errs.Add("book", "This field is required.")
	} else if id, err := uuid.Parse(req.Book); err != nil {
		errs.Addf("book", "Invalid pk \"%s\" - object does not exist.", req.Book)
	} else {
		in.BookID = id
	}

	if req.ExpectedReturnDate == "" {
		errs.Add("expected_return_date", "This field is required.")
	} else if expected, err := time.Parse(DateLayout, req.ExpectedReturnDate); err != nil {
		errs.Add("expected_return_date", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	} else {
		in.ExpectedReturnDate = expected
	}

	if err := errs.Err(); err != nil {
		return CreateInput{}, err
	}
	return in, nil
}

// parseFilter reads is_active and user_id. is_active=1 selects open
// borrowings; any other non-empty value selects returned ones.
func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	if v := q.Get("is_active"); v != "" {
		active := v == "1"
		f.IsActive = &active
	}
	if v := q.Get("user_id"); v != "" {
		userID, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, apperr.Validation("user_id", "Must be a valid UUID.")
		}
		f.UserID = &userID
	}
	return f, nil
}

func borrowingID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errNotFound
	}
	return id, nil
}
