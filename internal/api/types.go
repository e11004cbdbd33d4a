package api

import (
	"time"

	"github.com/amanthanvi/tripbook/internal/app"
	"github.com/amanthanvi/tripbook/internal/audit"
)

type Config struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RatePerSecond   int
	RateBurst       int
	Clock           clock
}

type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Services are the application services the HTTP handlers delegate to.
// Records is keyed by record type.
type Services struct {
	Records  map[string]*app.RecordService
	Search   *app.SearchService
	Stats    *app.StatsService
	Recorder audit.Recorder
}

// collections maps URL segments to record types.
var collections = map[string]string{
	"clients":  "client",
	"airlines": "airline",
	"flights":  "flight",
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type deleteBody struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type searchBody struct {
	Results    any              `json:"results"`
	Count      int              `json:"count"`
	Parameters searchParameters `json:"parameters"`
}

type searchParameters struct {
	Type  string `json:"type"`
	Field string `json:"field"`
	Value string `json:"value"`
	Match string `json:"match"`
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}
