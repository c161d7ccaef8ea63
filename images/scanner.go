package images

import (
	"context"
	"errors"
	"io"

	"github.com/dutchcoders/go-clamd"
	"github.com/rpupo63/portfolio-backend/errs"
)

// Scanner inspects file content for malware.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner streams content to a clamd daemon.
type ClamdScanner struct {
	addr string
}

func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	client := clamd.NewClamd(s.addr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := client.ScanStream(r, abortChan)
	if err != nil {
		return errs.NewStorageError("scan upload", err)
	}

	for {
		select {
		case <-ctx.Done():
			return errs.NewStorageError("scan upload", ctx.Err())
		case result, ok := <-scanChan:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return errs.NewPayloadRejectedError(errs.ConstraintMalware, "malicious file detected")
			default:
				return errs.NewStorageError("scan upload", errors.New(result.Description))
			}
		}
	}
}
