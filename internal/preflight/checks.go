package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sys/unix"

	"leadflow/internal/store"
)

const defaultCheckTimeout = 5 * time.Second

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

// CheckDatabase verifies the database is reachable and carries the schema.
func CheckDatabase(ctx context.Context, st *store.Store) Result {
	const name = "Database"

	health, err := st.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.Path, err)}
	}
	if !health.Exists {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", health.Path)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (schema v%d, %d tasks)", health.Path, health.SchemaVersion, health.RowCounts["tasks"]),
	}
}

// CheckNtfy verifies the ntfy server behind topicURL answers HTTP requests.
// Any response below 500 counts as reachable; publishing is not attempted.
func CheckNtfy(ctx context.Context, topicURL string, timeout time.Duration) Result {
	const name = "ntfy"

	endpoint := strings.TrimSpace(topicURL)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing topic url"}
	}
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckKafka dials each broker until one accepts a connection.
func CheckKafka(ctx context.Context, brokers []string, timeout time.Duration) Result {
	const name = "Kafka"

	if len(brokers) == 0 {
		return Result{Name: name, Detail: "no brokers configured"}
	}
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	dialer := &kafka.Dialer{Timeout: timeout}
	var lastErr error
	for _, broker := range brokers {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, err := dialer.DialContext(checkCtx, "tcp", broker)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", broker)}
	}
	return Result{Name: name, Detail: summarizeNetworkError(lastErr)}
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (endpoint unreachable)"
	}
	return err.Error()
}
