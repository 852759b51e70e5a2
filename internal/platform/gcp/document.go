package gcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

// docProcessor is the subset of documentai.DocumentProcessorClient we call.
type docProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

type DocAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
	MaxRetries       int
}

// DocAIPartitioner splits a PDF into per-page units using a Document AI
// OCR processor. Each unit carries the page text recovered by the processor.
type DocAIPartitioner struct {
	log        *logger.Logger
	client     docProcessor
	name       string
	timeout    time.Duration
	maxRetries int
}

func NewDocAIPartitioner(ctx context.Context, log *logger.Logger, cfg DocAIConfig) (*DocAIPartitioner, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Location) == "" {
		cfg.Location = "us"
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)

	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, credentialsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	p, err := newDocAIPartitioner(log, c, cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	p.log.Info("Document AI initialized", "endpoint", endpoint, "processor", p.name)
	return p, nil
}

func newDocAIPartitioner(log *logger.Logger, client docProcessor, cfg DocAIConfig) (*DocAIPartitioner, error) {
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, fmt.Errorf("documentai: project, location and processor id are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &DocAIPartitioner{
		log:        log.With("service", "gcp.DocAIPartitioner"),
		client:     client,
		name:       name,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (p *DocAIPartitioner) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *DocAIPartitioner) Partition(ctx context.Context, doc domain.Document) ([]domain.Unit, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("documentai: empty document")
	}
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = domain.MimeTypePDF
	}

	req := &documentaipb.ProcessRequest{
		Name: p.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: mimeType,
			},
		},
		FieldMask: &fieldmaskpb.FieldMask{Paths: []string{"text", "pages.page_number", "pages.paragraphs", "pages.layout"}},
	}

	resp, err := p.process(ctx, req)
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return nil, fmt.Errorf("documentai rejected %q: %v: %w", doc.Filename, err, domain.ErrUnsupportedMedia)
		}
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return nil, fmt.Errorf("documentai: empty response")
	}
	return unitsFromDocument(resp.Document), nil
}

func (p *DocAIPartitioner) process(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
	backoff := 750 * time.Millisecond
	var last error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := p.client.ProcessDocument(ctx, req)
		if err == nil {
			return resp, nil
		}
		last = err

		if !retryable(err) || attempt == p.maxRetries {
			break
		}
		p.log.Warn("documentai call failed, retrying", "attempt", attempt+1, "code", status.Code(err).String())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// unitsFromDocument yields one unit per page in page order. Pages without
// paragraph layout fall back to the page's own text anchor.
func unitsFromDocument(doc *documentaipb.Document) []domain.Unit {
	pages := make([]*documentaipb.Document_Page, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		if p != nil {
			pages = append(pages, p)
		}
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })

	out := make([]domain.Unit, 0, len(pages))
	for i, p := range pages {
		var pageText strings.Builder
		for _, para := range p.Paragraphs {
			if para == nil || para.Layout == nil || para.Layout.TextAnchor == nil {
				continue
			}
			t := strings.TrimSpace(textFromAnchor(doc.Text, para.Layout.TextAnchor))
			if t == "" {
				continue
			}
			pageText.WriteString(t)
			pageText.WriteString("\n")
		}
		text := strings.TrimSpace(pageText.String())
		if text == "" && p.Layout != nil {
			text = strings.TrimSpace(textFromAnchor(doc.Text, p.Layout.TextAnchor))
		}
		out = append(out, domain.Unit{
			Index:    i + 1,
			MimeType: "text/plain",
			Text:     text,
		})
	}
	if len(out) == 0 && strings.TrimSpace(doc.Text) != "" {
		out = append(out, domain.Unit{Index: 1, MimeType: "text/plain", Text: strings.TrimSpace(doc.Text)})
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
