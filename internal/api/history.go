package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/history"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	defaultMetricsRange = time.Hour
	defaultMetricsStep  = time.Minute

	// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
	maxQueryParamLen = 100
)

// metricsMeasurements maps the metrics endpoint's measurement parameter
// onto the PromQL series the telemetry writer emits.
var metricsMeasurements = map[string]string{
	"temperature":   "temperature",
	"channel_state": "channel_state",
	"watchdog":      "watchdog",
	"connection":    "connection",
	"broadcast":     "broadcast",
}

// handleListHistory returns state machine transitions, newest first.
//
// Query parameters:
//   - kind: filter by machine (connection, broadcast, watchdog)
//   - limit: max results (default 50, max 200)
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "state history not configured")
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind != "" && !history.IsValidKind(kind) {
		writeBadRequest(w, "kind must be connection, broadcast, or watchdog")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	transitions, err := s.history.List(r.Context(), kind, limit)
	if err != nil {
		s.logger.Error("failed to list transitions", "error", err)
		writeInternalError(w, "failed to list transitions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transitions": transitions,
		"count":       len(transitions),
	})
}

// handleHistoryMetrics proxies a PromQL range query against the
// telemetry series (PA temperature, channel state, watchdog health).
//
// Query parameters:
//   - measurement: series name (temperature, channel_state, watchdog, connection, broadcast)
//   - channel: optional channel label for channel_state
//   - start, end: RFC3339 or Unix timestamps (default: last hour)
//   - step: Prometheus duration (default 1m)
func (s *Server) handleHistoryMetrics(w http.ResponseWriter, r *http.Request) {
	if s.tsdb == nil || !s.tsdb.IsConnected() {
		writeServiceUnavailable(w, "time-series database unavailable")
		return
	}

	measurement := r.URL.Query().Get("measurement")
	series, ok := metricsMeasurements[measurement]
	if !ok {
		writeBadRequest(w, "measurement must be one of temperature, channel_state, watchdog, connection, broadcast")
		return
	}

	query := series
	if channel := r.URL.Query().Get("channel"); channel != "" {
		if measurement != "channel_state" {
			writeBadRequest(w, "channel filter only applies to channel_state")
			return
		}
		quoted, err := quotePromQLLabelValue(channel)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		query = fmt.Sprintf("channel_state{channel=%s}", quoted)
	}

	start, end, step, err := parseMetricsRangeParams(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp, err := s.tsdb.QueryRange(r.Context(), query, start, end, step)
	if err != nil {
		writeServiceUnavailable(w, "time-series database unavailable")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseMetricsRangeParams parses start, end, and step parameters with defaults.
func parseMetricsRangeParams(r *http.Request) (time.Time, time.Time, time.Duration, error) {
	now := time.Now().UTC()
	start, err := parseTimeParam(r.URL.Query().Get("start"), now.Add(-defaultMetricsRange))
	if err != nil {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("invalid start timestamp")
	}

	end, err := parseTimeParam(r.URL.Query().Get("end"), now)
	if err != nil {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("invalid end timestamp")
	}

	step, err := parseStepParam(r.URL.Query().Get("step"))
	if err != nil || step <= 0 {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("invalid step")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("end must be after start")
	}

	return start, end, step, nil
}

// parseTimeParam parses an ISO8601 or Unix timestamp, with a fallback default.
func parseTimeParam(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}

	if parsed, err := parseRFC3339(raw); err == nil {
		return parsed, nil
	}

	return parseUnixTimestamp(raw)
}

// parseRFC3339 parses a timestamp in RFC3339 or RFC3339Nano format.
func parseRFC3339(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return parsed.UTC(), nil
	}

	parsed, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}

	return parsed.UTC(), nil
}

// parseUnixTimestamp parses a Unix timestamp string into time.Time.
func parseUnixTimestamp(raw string) (time.Time, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, err
	}

	seconds, fraction := math.Modf(value)
	return time.Unix(int64(seconds), int64(fraction*float64(time.Second))).UTC(), nil
}

// parseStepParam parses a Prometheus duration string into time.Duration.
func parseStepParam(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultMetricsStep, nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed, nil
	}

	return parseExtendedDuration(raw)
}

// parseExtendedDuration handles day/week/year suffixes not supported by time.ParseDuration.
func parseExtendedDuration(raw string) (time.Duration, error) {
	if len(raw) < 2 {
		return 0, fmt.Errorf("invalid duration")
	}

	number := raw[:len(raw)-1]
	unit := raw[len(raw)-1]

	multiplier, ok := map[byte]time.Duration{
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
		'y': 365 * 24 * time.Hour,
	}[unit]
	if !ok {
		return 0, fmt.Errorf("invalid duration")
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid duration")
	}

	return time.Duration(value * float64(multiplier)), nil
}

// quotePromQLLabelValue safely quotes a label value for PromQL.
func quotePromQLLabelValue(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("value is required")
	}
	if len(value) > maxQueryParamLen {
		return "", fmt.Errorf("value exceeds maximum length")
	}

	return strconv.Quote(value), nil
}
