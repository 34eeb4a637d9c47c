package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"diet-agent/internal/app"
	"diet-agent/internal/shared"
	"diet-agent/internal/tracker"
	"diet-agent/internal/user"
)

const maxBodyBytes = 1 << 16

// Server exposes the health-sync API used by phone shortcuts and fitness apps.
type Server struct {
	svc     *app.Service
	secret  []byte
	adminID int64
	logger  *zap.Logger
	now     func() time.Time
}

// NewServer creates the API server. Tokens are verified with secret.
func NewServer(svc *app.Service, secret []byte, adminID int64, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, secret: secret, adminID: adminID, logger: logger, now: time.Now}
}

// RegisterHandlers mounts the API under /api/v1.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sync/water", s.requireAuth(s.handleSyncWater))
	mux.HandleFunc("POST /api/v1/sync/weight", s.requireAuth(s.handleSyncWeight))
	mux.HandleFunc("POST /api/v1/sync/food", s.requireAuth(s.handleSyncFood))
	mux.HandleFunc("GET /api/v1/users/{telegramID}/stats", s.requireAuth(s.handleStats))
	mux.HandleFunc("GET /api/v1/users/{telegramID}/plan/{date}", s.requireAuth(s.handlePlan))
}

type waterSyncRequest struct {
	TelegramID int64      `json:"telegram_id"`
	AmountML   int        `json:"amount_ml"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

type weightSyncRequest struct {
	TelegramID int64      `json:"telegram_id"`
	WeightKG   float64    `json:"weight_kg"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

type foodSyncRequest struct {
	TelegramID  int64      `json:"telegram_id"`
	Description string     `json:"food_description"`
	Calories    int        `json:"calories"`
	Protein     int        `json:"protein"`
	Carbs       int        `json:"carbs"`
	Fat         int        `json:"fat"`
	MealType    string     `json:"meal_type,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

type syncResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DailyTotal *int   `json:"daily_total,omitempty"`
}

// StatsResponse is today's summary for widgets.
type StatsResponse struct {
	Date     string `json:"date"`
	Calories struct {
		Consumed  int `json:"consumed"`
		Target    int `json:"target"`
		Remaining int `json:"remaining"`
	} `json:"calories"`
	Protein struct {
		Consumed int `json:"consumed"`
		Target   int `json:"target"`
	} `json:"protein"`
	Water struct {
		ConsumedML int `json:"consumed_ml"`
		TargetML   int `json:"target_ml"`
		Percentage int `json:"percentage"`
	} `json:"water"`
	MealsLogged int            `json:"meals_logged"`
	OnTrack     bool           `json:"on_track"`
	Streaks     map[string]int `json:"streaks"`
}

func (s *Server) handleSyncWater(w http.ResponseWriter, r *http.Request) {
	var req waterSyncRequest
	p, ok := s.decodeFor(w, r, &req, &req.TelegramID)
	if !ok {
		return
	}
	if _, err := s.svc.LogWater(r.Context(), p.ID, req.AmountML, s.at(req.Timestamp)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	progress, err := s.svc.Progress(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Success:    true,
		Message:    fmt.Sprintf("Logged %dml of water", req.AmountML),
		DailyTotal: &progress.WaterML,
	})
}

func (s *Server) handleSyncWeight(w http.ResponseWriter, r *http.Request) {
	var req weightSyncRequest
	p, ok := s.decodeFor(w, r, &req, &req.TelegramID)
	if !ok {
		return
	}
	if _, err := s.svc.LogWeight(r.Context(), p.ID, req.WeightKG, s.at(req.Timestamp)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Message: fmt.Sprintf("Logged weight: %gkg", req.WeightKG)})
}

func (s *Server) handleSyncFood(w http.ResponseWriter, r *http.Request) {
	var req foodSyncRequest
	p, ok := s.decodeFor(w, r, &req, &req.TelegramID)
	if !ok {
		return
	}
	e, err := s.svc.LogFood(r.Context(), p.ID, app.FoodLog{
		Description: req.Description,
		MealType:    req.MealType,
		Calories:    req.Calories,
		Protein:     req.Protein,
		Carbs:       req.Carbs,
		Fat:         req.Fat,
		LoggedAt:    s.at(req.Timestamp),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	progress, err := s.svc.Progress(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Success:    true,
		Message:    "Logged: " + e.Description,
		DailyTotal: &progress.Consumed.Calories,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p, ok := s.profileFromPath(w, r)
	if !ok {
		return
	}
	progress, err := s.svc.Progress(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	streaks, err := s.svc.Streaks(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var resp StatsResponse
	resp.Date = progress.Date
	resp.Calories.Consumed = progress.Consumed.Calories
	resp.Calories.Target = progress.Targets.Calories
	resp.Calories.Remaining = progress.RemainingCalories()
	resp.Protein.Consumed = progress.Consumed.Protein
	resp.Protein.Target = progress.Targets.Protein
	resp.Water.ConsumedML = progress.WaterML
	resp.Water.TargetML = progress.WaterTargetML
	if progress.WaterTargetML > 0 {
		resp.Water.Percentage = progress.WaterML * 100 / progress.WaterTargetML
	}
	resp.MealsLogged = progress.MealsLogged
	resp.OnTrack = progress.OnTrack
	resp.Streaks = make(map[string]int, len(streaks))
	for _, st := range streaks {
		resp.Streaks[string(st.Type)] = st.Current
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	p, ok := s.profileFromPath(w, r)
	if !ok {
		return
	}
	date := r.PathValue("date")
	if _, err := shared.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := s.svc.StoredPlan(r.Context(), p.ID, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "no plan for "+date)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// decodeFor reads a sync body into v and resolves the account it targets. A zero telegram id
// means the caller's own account.
func (s *Server) decodeFor(w http.ResponseWriter, r *http.Request, v any, telegramID *int64) (*user.Profile, bool) {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	caller := callerFrom(r.Context())
	if *telegramID == 0 {
		*telegramID = caller
	}
	return s.authorizedProfile(w, r, caller, *telegramID)
}

func (s *Server) profileFromPath(w http.ResponseWriter, r *http.Request) (*user.Profile, bool) {
	id, err := strconv.ParseInt(r.PathValue("telegramID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return nil, false
	}
	return s.authorizedProfile(w, r, callerFrom(r.Context()), id)
}

func (s *Server) authorizedProfile(w http.ResponseWriter, r *http.Request, caller, telegramID int64) (*user.Profile, bool) {
	if !s.canAccess(caller, telegramID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	p, err := s.svc.ProfileByTelegramID(r.Context(), telegramID)
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	return p, true
}

func (s *Server) at(ts *time.Time) time.Time {
	if ts == nil || ts.IsZero() {
		return s.now()
	}
	return *ts
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "user not found, start the bot first with /start")
	case errors.Is(err, tracker.ErrInvalidEntry), errors.Is(err, user.ErrInvalidProfile):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("api request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
