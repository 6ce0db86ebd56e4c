package database

import "database/sql"

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	CreateRun(toolDir, datastore string) (*Run, error)
	AppendProgress(runID string, line string) error
	FinishRun(runID string, status string, report string) error
	GetRun(id string) (*Run, error)
	GetRuns(limit int) ([]*Run, error)
	GetProgress(runID string) ([]string, error)

	// CreateLayer appends the layer after the current last layer and returns its ID.
	CreateLayer(layer *LayerRecord) (string, error)
	GetLayers() ([]*LayerRecord, error)
	GetLayerByID(id string) (*LayerRecord, error)
	DeleteLayer(id string) error
	// UpdateLayerOrder persists the given ordering, rewriting only the ranks that need it.
	UpdateLayerOrder(order []string) error
}
