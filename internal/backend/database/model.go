package database

import "time"

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

type Run struct {
	ID         string    `json:"id" db:"id"`
	ToolDir    string    `json:"toolDir" db:"tool_dir"`
	Datastore  string    `json:"datastore" db:"datastore"`
	Status     string    `json:"status" db:"status"`
	Report     string    `json:"report" db:"report"` // JSON encoded dispatch report
	StartedAt  time.Time `json:"startedAt" db:"started_at"`
	FinishedAt time.Time `json:"finishedAt" db:"finished_at"` // zero while running
}

type LayerRecord struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Source    string `json:"source" db:"source"`
	Kind      string `json:"kind" db:"kind"`
	BandCount int    `json:"bandCount" db:"band_count"`
	Rank      string `json:"rank" db:"rank"` // LexoRank string to maintain ordering
}
