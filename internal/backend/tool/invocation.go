package tool

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/jo-hoe/cdbgen/internal/backend/cdb"
)

const (
	InjectExecutable   = "cdb-inject"
	OverviewExecutable = "gdaladdo"

	skipOverviewsFlag = "-skip-overviews"
)

// Invocation is a single external tool call.
type Invocation struct {
	Executable string
	Args       []string
}

// String renders the invocation as a shell-like command line for logging.
func (i Invocation) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	parts = append(parts, quote(i.Executable))
	for _, arg := range i.Args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}
	return s
}

// ExecutablePath joins the tool directory with the executable name, adding
// the .exe suffix on Windows or when forceExe is set.
func ExecutablePath(toolDir, name string, forceExe bool) string {
	if (forceExe || runtime.GOOS == "windows") && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}
	return filepath.Join(toolDir, name)
}

// InjectInvocation builds the cdb-inject call inserting source into datastore.
func InjectInvocation(executable, source, datastore string, skipOverviews bool) Invocation {
	args := make([]string, 0, 3)
	if skipOverviews {
		args = append(args, skipOverviewsFlag)
	}
	args = append(args, source, datastore)
	return Invocation{Executable: executable, Args: args}
}

// OverviewOptions controls the gdaladdo overview build.
type OverviewOptions struct {
	Resampling string
	LodMin     int
	// LodMax is optional; nil lets the CDB driver pick the finest LOD present.
	LodMax *int
	Levels []int
}

// OverviewInvocation builds the gdaladdo call against the imagery dataset of datastore.
func OverviewInvocation(executable, datastore string, opts OverviewOptions) Invocation {
	args := []string{"--config", "LODMIN", strconv.Itoa(opts.LodMin)}
	if opts.LodMax != nil {
		args = append(args, "--config", "LODMAX", strconv.Itoa(*opts.LodMax))
	}
	resampling := opts.Resampling
	if resampling == "" {
		resampling = "average"
	}
	args = append(args, "-r", resampling, cdb.ImageryURI(datastore))
	for _, level := range opts.Levels {
		args = append(args, strconv.Itoa(level))
	}
	return Invocation{Executable: executable, Args: args}
}
