package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// FailureKind classifies why a record extraction gave up.
type FailureKind string

const (
	FailSearchTimeout      FailureKind = "search_timeout"
	FailDetailLoadTimeout  FailureKind = "detail_load_timeout"
	FailNavigationRecovery FailureKind = "navigation_recovery_failed"
	FailAborted            FailureKind = "aborted"
)

// Failure is the error returned when the state machine cannot finish a
// record. The session is left on the search form for every kind except
// FailNavigationRecovery, after which the caller must reopen the portal.
type Failure struct {
	Kind FailureKind
	ID   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", f.ID, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

type state int

const (
	stateSearch state = iota
	stateSelect
	stateScrape
	stateReturn
	stateDone
)

// Extractor walks one page session through the per-record scraping cycle:
// search, select the result, scrape each section, return to the list.
type Extractor struct {
	session ports.PageSession
	profile Profile
	logger  *slog.Logger
	now     func() time.Time
}

func New(session ports.PageSession, profile Profile, logger *slog.Logger) *Extractor {
	return &Extractor{
		session: session,
		profile: profile.withDefaults(),
		logger:  logger.With("component", "extractor", "source", profile.Source),
		now:     time.Now,
	}
}

// Open navigates to the portal entry point and lands on the search form.
// It must be called once before the first Extract and again after a
// navigation recovery failure.
func (e *Extractor) Open(ctx context.Context) error {
	if err := e.session.Navigate(ctx, e.profile.URL); err != nil {
		return fmt.Errorf("navigate to portal: %w", err)
	}
	if e.profile.EntryLink != "" {
		if err := e.session.WaitVisible(ctx, e.profile.EntryLink, e.profile.NavTimeout); err != nil {
			return fmt.Errorf("wait for portal entry: %w", err)
		}
		if err := e.session.Click(ctx, e.profile.EntryLink); err != nil {
			return fmt.Errorf("open process search: %w", err)
		}
	}
	if err := e.session.WaitVisible(ctx, e.profile.SearchInput, e.profile.NavTimeout); err != nil {
		return fmt.Errorf("wait for search form: %w", err)
	}
	return nil
}

// Extract runs the full cycle for one process id. On success the returned
// record carries every section payload; sections whose container never
// appeared are recorded as an error payload and downgrade the record to
// partial. Any returned error is a *Failure.
func (e *Extractor) Extract(ctx context.Context, id string) (domain.Record, error) {
	rec := domain.Record{
		ID:     id,
		Source: e.profile.Source,
		Fields: make(map[domain.Section]json.RawMessage, len(e.profile.Sections)),
		Status: domain.StatusComplete,
	}
	rec.DepartmentCode = domain.DepartmentCodeFromID(id)

	st := stateSearch
	secIdx := 0
	for st != stateDone {
		if err := ctx.Err(); err != nil {
			return domain.Record{}, &Failure{Kind: FailAborted, ID: id, Err: err}
		}
		switch st {
		case stateSearch:
			if err := e.search(ctx, id); err != nil {
				return domain.Record{}, &Failure{Kind: FailSearchTimeout, ID: id, Err: err}
			}
			st = stateSelect
		case stateSelect:
			if err := e.openDetail(ctx); err != nil {
				if rerr := e.recover(ctx); rerr != nil {
					return domain.Record{}, &Failure{Kind: FailNavigationRecovery, ID: id, Err: rerr}
				}
				return domain.Record{}, &Failure{Kind: FailDetailLoadTimeout, ID: id, Err: err}
			}
			st = stateScrape
		case stateScrape:
			spec := e.profile.Sections[secIdx]
			payload, ok := e.scrapeSection(ctx, spec)
			rec.Fields[spec.Name] = payload
			if !ok {
				rec.Status = domain.StatusPartial
			}
			secIdx++
			if secIdx == len(e.profile.Sections) {
				st = stateReturn
			}
		case stateReturn:
			if err := e.returnToList(ctx); err != nil {
				return domain.Record{}, &Failure{Kind: FailNavigationRecovery, ID: id, Err: err}
			}
			st = stateDone
		}
	}

	rec.CreatedAt = e.now().UTC()
	return rec, nil
}

func (e *Extractor) search(ctx context.Context, id string) error {
	if err := e.session.Fill(ctx, e.profile.SearchInput, id); err != nil {
		return fmt.Errorf("fill search input: %w", err)
	}
	if err := e.session.Click(ctx, e.profile.SearchButton); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	e.waitOverlayGone(ctx)
	if err := e.session.WaitVisible(ctx, e.profile.ResultLink, e.profile.SearchTimeout); err != nil {
		return fmt.Errorf("wait for search result: %w", err)
	}
	return nil
}

func (e *Extractor) openDetail(ctx context.Context) error {
	if err := e.session.Click(ctx, e.profile.ResultLink); err != nil {
		return fmt.Errorf("open detail: %w", err)
	}
	e.waitOverlayGone(ctx)
	if err := e.session.WaitVisible(ctx, e.profile.DetailMarker, e.profile.DetailTimeout); err != nil {
		return fmt.Errorf("wait for detail page: %w", err)
	}
	return nil
}

// scrapeSection reads one section. It returns the payload and whether the
// section was fully present. A missing container yields an error payload;
// a missing individual field yields an empty value.
func (e *Extractor) scrapeSection(ctx context.Context, spec SectionSpec) (json.RawMessage, bool) {
	if err := e.session.WaitVisible(ctx, spec.Container, e.profile.SectionTimeout); err != nil {
		e.logger.Warn("section container missing", "section", spec.Name, "error", err)
		return errorPayload(err), false
	}

	switch spec.Kind {
	case SectionItems:
		html, err := e.session.HTML(ctx, spec.Container)
		if err != nil {
			return errorPayload(err), false
		}
		items, err := parseItems(html)
		if err != nil {
			return errorPayload(err), false
		}
		return mustJSON(items), true
	case SectionRequirements:
		html, err := e.session.HTML(ctx, spec.Container)
		if err != nil {
			return errorPayload(err), false
		}
		groups, err := parseRequirements(html)
		if err != nil {
			return errorPayload(err), false
		}
		return mustJSON(groups), true
	default:
		fields := make(map[string]string, len(spec.Fields))
		for key, selector := range spec.Fields {
			text, err := e.session.Text(ctx, selector)
			if err != nil {
				text = ""
			}
			fields[key] = text
		}
		return mustJSON(fields), true
	}
}

// returnToList navigates back to the search form. A failed back click gets
// one reload attempt; if the form still does not appear the session is
// considered lost.
func (e *Extractor) returnToList(ctx context.Context) error {
	err := e.session.Click(ctx, e.profile.BackLink)
	if err == nil {
		e.waitOverlayGone(ctx)
		err = e.session.WaitVisible(ctx, e.profile.SearchInput, e.profile.NavTimeout)
	}
	if err == nil {
		return nil
	}
	e.logger.Warn("back navigation failed, reloading", "error", err)
	if rerr := e.recover(ctx); rerr != nil {
		return rerr
	}
	return nil
}

func (e *Extractor) recover(ctx context.Context) error {
	if err := e.session.Reload(ctx); err != nil {
		return fmt.Errorf("reload after navigation failure: %w", err)
	}
	if err := e.session.WaitVisible(ctx, e.profile.SearchInput, e.profile.NavTimeout); err != nil {
		return fmt.Errorf("search form lost after reload: %w", err)
	}
	return nil
}

func (e *Extractor) waitOverlayGone(ctx context.Context) {
	if e.profile.LoadingOverlay == "" {
		return
	}
	// Best effort: the overlay may never have been shown at all.
	_ = e.session.WaitHidden(ctx, e.profile.LoadingOverlay, e.profile.SectionTimeout)
}

func errorPayload(err error) json.RawMessage {
	return mustJSON(map[string]string{"error": err.Error()})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Only map[string]string and the item/requirement structs reach
		// here; neither can fail to marshal.
		return json.RawMessage(`{}`)
	}
	return b
}
