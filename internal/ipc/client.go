package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Send opens a unix-socket request/response roundtrip with a deadline. A
// missing socket or one nobody listens on yields ErrNotRunning.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		if isSocketMissing(err) || isConnectionRefused(err) {
			return Response{}, fmt.Errorf("%w (socket %s)", ErrNotRunning, path)
		}
		return Response{}, fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	return resp, nil
}

// RemoteError is an error reported by the daemon in a response.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// Call sends req and converts a failed response into a *RemoteError.
func Call(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	resp, err := Send(ctx, path, req, timeout)
	if err != nil {
		return Response{}, err
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "request failed"
		}
		return resp, &RemoteError{Command: req.Command, Message: msg}
	}
	return resp, nil
}

// Probe asks the daemon on path for its status. ok is false with a nil error
// when nothing is listening; any other failure leaves the owner unknown.
func Probe(ctx context.Context, path string, timeout time.Duration) (st Status, ok bool, err error) {
	resp, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	switch {
	case errors.Is(err, ErrNotRunning):
		return Status{}, false, nil
	case err != nil:
		return Status{}, false, fmt.Errorf("query socket status: %w", err)
	case resp.Status != nil:
		return *resp.Status, true, nil
	default:
		return Status{State: resp.State}, true, nil
	}
}

// isSocketMissing reports absent-socket failures.
func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist)
}

// isConnectionRefused reports no-listener failures.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
