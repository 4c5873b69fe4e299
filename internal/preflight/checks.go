package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"imgcat/internal/catalog"
	"imgcat/internal/source"
)

// CheckCatalog verifies the store answers and its schema is readable.
func CheckCatalog(ctx context.Context, store *catalog.Store) Result {
	const name = "Catalog"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%v)", store.Driver(), err)}
	}
	versions, err := store.Versions(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("schema check failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s ok (%d versions)", store.Driver(), len(versions))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSource lists the version scope of one source with a single attempt.
func CheckSource(ctx context.Context, adapter source.Adapter) Result {
	name := "Source " + adapter.Name()

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	children, err := adapter.ListChildren(checkCtx, source.VersionScope())
	if err != nil {
		return Result{Name: name, Detail: summarizeSourceError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d collections)", len(children))}
}

// summarizeSourceError produces a human-readable summary for source failures.
func summarizeSourceError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "listing timed out (source unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "listing timed out (source unreachable)"
	}
	return err.Error()
}
