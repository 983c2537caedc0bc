package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/voltbridge/voltbridge/internal/history"
)

// rangeWidths are the accepted values of the range query parameter.
var rangeWidths = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"60d": 60 * 24 * time.Hour,
}

// timeRange resolves the query window: either range=1h|6h|24h|7d|30d|60d or
// an explicit start+end pair in RFC 3339. No parameters means the last hour.
func timeRange(w http.ResponseWriter, r *http.Request) (start, end time.Time, ok bool) {
	q := r.URL.Query()

	if rng := q.Get("range"); rng != "" {
		width, found := rangeWidths[rng]
		if !found {
			writeBadRequest(w, "range must be one of 1h, 6h, 24h, 7d, 30d, 60d")
			return start, end, false
		}
		end = time.Now().UTC()
		return end.Add(-width), end, true
	}

	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr == "" && endStr == "" {
		end = time.Now().UTC()
		return end.Add(-time.Hour), end, true
	}

	var err error
	if start, err = time.Parse(time.RFC3339, startStr); err != nil {
		writeBadRequest(w, "start must be RFC 3339")
		return start, end, false
	}
	if end, err = time.Parse(time.RFC3339, endStr); err != nil {
		writeBadRequest(w, "end must be RFC 3339")
		return start, end, false
	}
	if !end.After(start) {
		writeBadRequest(w, "end must be after start")
		return start, end, false
	}
	return start, end, true
}

// historyTarget resolves the store and device for a history request.
func (s *Server) historyTarget(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "history store disabled")
		return "", false
	}
	p, ok := s.pollerFor(w, r)
	if !ok {
		return "", false
	}
	return p.DeviceID(), true
}

func (s *Server) handleHistoryBanks(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := s.historyTarget(w, r)
	if !ok {
		return
	}
	start, end, ok := timeRange(w, r)
	if !ok {
		return
	}
	points, err := s.history.QueryBanks(r.Context(), deviceID, start, end)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	if points == nil {
		points = []history.BankPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleHistoryOutlets(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := s.historyTarget(w, r)
	if !ok {
		return
	}
	start, end, ok := timeRange(w, r)
	if !ok {
		return
	}
	points, err := s.history.QueryOutlets(r.Context(), deviceID, start, end)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	if points == nil {
		points = []history.OutletPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleHistoryBanksCSV(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := s.historyTarget(w, r)
	if !ok {
		return
	}
	start, end, ok := timeRange(w, r)
	if !ok {
		return
	}
	points, err := s.history.QueryBanks(r.Context(), deviceID, start, end)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="banks.csv"`)
	cw := csv.NewWriter(w)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	cw.Write([]string{"ts", "bank", "voltage", "current", "power", "apparent", "pf"})
	for _, p := range points {
		//nolint:errcheck
		cw.Write([]string{
			p.Timestamp.Format(time.RFC3339),
			strconv.Itoa(p.Bank),
			csvFloat(p.Voltage),
			csvFloat(p.Current),
			csvFloat(p.Power),
			csvFloat(p.Apparent),
			csvFloat(p.PF),
		})
	}
	cw.Flush()
}

func (s *Server) handleHistoryOutletsCSV(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := s.historyTarget(w, r)
	if !ok {
		return
	}
	start, end, ok := timeRange(w, r)
	if !ok {
		return
	}
	points, err := s.history.QueryOutlets(r.Context(), deviceID, start, end)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="outlets.csv"`)
	cw := csv.NewWriter(w)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	cw.Write([]string{"ts", "outlet", "state", "current", "power", "energy"})
	for _, p := range points {
		state := ""
		if p.State != nil {
			state = strconv.Itoa(*p.State)
		}
		//nolint:errcheck
		cw.Write([]string{
			p.Timestamp.Format(time.RFC3339),
			strconv.Itoa(p.Outlet),
			state,
			csvFloat(p.Current),
			csvFloat(p.Power),
			csvFloat(p.Energy),
		})
	}
	cw.Flush()
}

// csvFloat renders an optional float, empty when absent.
func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
