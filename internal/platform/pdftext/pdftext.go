// Package pdftext partitions a PDF into per-page plain text locally.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

type Partitioner struct {
	// MaxPages caps the number of pages read; 0 means no cap.
	MaxPages int
}

func NewPartitioner(maxPages int) *Partitioner {
	return &Partitioner{MaxPages: maxPages}
}

func (p *Partitioner) Partition(ctx context.Context, doc domain.Document) (units []domain.Unit, err error) {
	// The reader panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}
	n := r.NumPage()
	if p.MaxPages > 0 && n > p.MaxPages {
		return nil, fmt.Errorf("pdf has %d pages, limit is %d", n, p.MaxPages)
	}

	units = make([]domain.Unit, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		text := ""
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("pdf page %d plaintext: %w", i, err)
			}
		}
		units = append(units, domain.Unit{
			Index:    i,
			MimeType: "text/plain",
			Text:     strings.TrimSpace(strings.ReplaceAll(text, "\u00a0", " ")),
		})
	}
	return units, nil
}
