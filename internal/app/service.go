package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"interlink/api/internal/catalog"
	"interlink/api/internal/config"
	"interlink/api/internal/linker"
	"interlink/api/internal/revlog"
	"interlink/api/internal/search"
	"interlink/api/internal/store"
	"interlink/api/internal/verify"
)

type dataStore interface {
	ListDocuments(context.Context) ([]store.Document, error)
	GetDocument(context.Context, string) (store.Document, error)
	InsertDocument(context.Context, store.Document) error
	ListCatalogEntries(context.Context) ([]store.LinkCatalogEntry, error)
	GetCatalogEntry(context.Context, string) (store.LinkCatalogEntry, error)
	InsertCatalogEntry(context.Context, store.LinkCatalogEntry) error
	SetPageExists(context.Context, string, bool) error
	ListLinkUsages(context.Context, string) ([]store.LinkUsage, error)
	ListAutoLinkUsages(context.Context, string) ([]store.LinkUsage, error)
	ApplyOptimization(context.Context, string, string, time.Time, []store.LinkUsage) error
	ApplyRollback(context.Context, string) (int, error)
	ApplyAutoRemoval(context.Context, string, string, []int64, []string) error
	Ping(ctx context.Context) error
}

type catalogReader interface {
	Snapshot(ctx context.Context, linkIDs []string) (map[string]store.LinkCatalogEntry, error)
	Invalidate(ctx context.Context, linkIDs ...string)
}

type pageChecker interface {
	PageExists(ctx context.Context, target string) (bool, error)
}

type revisionLog interface {
	Record(documentID, body, message string) error
	History(documentID string, limit int) ([]revlog.Revision, error)
	BodyAt(documentID, hash string) (string, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	catalog   catalogReader
	verifier  pageChecker
	revisions revisionLog
	search    *search.Service
}

// New wires the service. verifier, revisions, and searcher may be nil when the
// corresponding feature is not configured.
func New(cfg config.Config, dataStore *store.PostgresStore, catalogReader *catalog.Reader, verifier *verify.Checker, revisions *revlog.Service, searcher *search.Service) *Service {
	svc := &Service{
		cfg:     cfg,
		store:   dataStore,
		catalog: catalogReader,
		search:  searcher,
	}
	if verifier != nil {
		svc.verifier = verifier
	}
	if revisions != nil {
		svc.revisions = revisions
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// DocumentSummary is the listing row, with the derived optimization status.
type DocumentSummary struct {
	ID          string                    `json:"id"`
	Title       string                    `json:"title"`
	LinkCount   int                       `json:"linkCount"`
	HasBackup   bool                      `json:"hasBackup"`
	OptimizedAt *time.Time                `json:"optimizedAt,omitempty"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
	Status      linker.OptimizationStatus `json:"status"`
}

// DocumentDetail adds the body to the summary fields.
type DocumentDetail struct {
	DocumentSummary
	Content string `json:"content"`
}

func summarize(doc store.Document) DocumentSummary {
	return DocumentSummary{
		ID:          doc.ID,
		Title:       doc.Title,
		LinkCount:   doc.LinkCount,
		HasBackup:   doc.OriginalContent != nil,
		OptimizedAt: doc.OptimizedAt,
		UpdatedAt:   doc.UpdatedAt,
		Status:      linker.Status(doc.Content),
	}
}

func (s *Service) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	documents, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]DocumentSummary, 0, len(documents))
	for _, doc := range documents {
		items = append(items, summarize(doc))
	}
	return items, nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (DocumentDetail, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return DocumentDetail{}, err
	}
	return DocumentDetail{DocumentSummary: summarize(doc), Content: doc.Content}, nil
}

func (s *Service) OptimizationStatus(ctx context.Context, documentID string) (linker.OptimizationStatus, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return linker.OptimizationStatus{}, err
	}
	return linker.Status(doc.Content), nil
}

func (s *Service) getDocument(ctx context.Context, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, domainError(http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found", nil)
	}
	if err != nil {
		return store.Document{}, err
	}
	return doc, nil
}

// PreviewInput carries the unvalidated candidate list from the generator.
type PreviewInput struct {
	Candidates []linker.Candidate `json:"candidates"`
}

// PreviewResult is a dry-run plan plus the body it would produce. Nothing is
// persisted by a preview.
type PreviewResult struct {
	DocumentID string                  `json:"documentId"`
	Plan       []linker.InjectionPoint `json:"plan"`
	Preview    string                  `json:"preview"`
}

func (s *Service) Preview(ctx context.Context, documentID string, input PreviewInput) (PreviewResult, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return PreviewResult{}, err
	}

	plan, err := s.plan(ctx, doc.Content, input.Candidates)
	if err != nil {
		return PreviewResult{}, err
	}

	preview, err := linker.ApplyPlan(doc.Content, plan)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{DocumentID: documentID, Plan: plan, Preview: preview}, nil
}

func (s *Service) plan(ctx context.Context, body string, candidates []linker.Candidate) ([]linker.InjectionPoint, error) {
	linkIDs := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		linkIDs = append(linkIDs, candidate.LinkID)
	}
	snapshot, err := s.catalog.Snapshot(ctx, linkIDs)
	if err != nil {
		return nil, err
	}
	return linker.PlanInjections(body, candidates, snapshot), nil
}

// CommitInput carries a previously previewed plan back for persistence.
type CommitInput struct {
	Plan []linker.InjectionPoint `json:"plan"`
}

type CommitResult struct {
	DocumentID  string    `json:"documentId"`
	Inserted    int       `json:"inserted"`
	LinkCount   int       `json:"linkCount"`
	OptimizedAt time.Time `json:"optimizedAt"`
}

// Commit applies an accepted plan against the current body and persists the
// result in one transaction. The plan's offsets must still match the stored
// body; a mismatch means the document changed since preview and the whole
// commit is refused.
func (s *Service) Commit(ctx context.Context, documentID string, input CommitInput) (CommitResult, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return CommitResult{}, err
	}

	now := time.Now()
	if len(input.Plan) == 0 {
		return CommitResult{DocumentID: documentID, Inserted: 0, LinkCount: doc.LinkCount, OptimizedAt: now}, nil
	}

	for _, point := range input.Plan {
		if point.Start < 0 || point.End > len(doc.Content) || point.Start >= point.End ||
			doc.Content[point.Start:point.End] != point.AnchorText {
			return CommitResult{}, domainError(http.StatusConflict, "PLAN_OUT_OF_DATE",
				"document changed since the plan was built, preview again", nil)
		}
	}

	newContent, err := linker.ApplyPlan(doc.Content, input.Plan)
	if err != nil {
		if errors.Is(err, linker.ErrOverlappingPlan) {
			return CommitResult{}, domainError(http.StatusUnprocessableEntity, "INVALID_PLAN", err.Error(), nil)
		}
		return CommitResult{}, err
	}

	usages := make([]store.LinkUsage, 0, len(input.Plan))
	linkIDs := make([]string, 0, len(input.Plan))
	for _, point := range input.Plan {
		usages = append(usages, store.LinkUsage{
			LinkID:          point.LinkID,
			DocumentID:      documentID,
			AnchorText:      point.AnchorText,
			ContextSnippet:  linker.ContextSnippet(doc.Content, linker.Span{Start: point.Start, End: point.End}),
			Position:        point.Start,
			WasAutoInserted: true,
		})
		linkIDs = append(linkIDs, point.LinkID)
	}

	if err := s.store.ApplyOptimization(ctx, documentID, newContent, now, usages); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CommitResult{}, domainError(http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found", nil)
		}
		return CommitResult{}, err
	}

	s.recordRevision(documentID, newContent, fmt.Sprintf("Inject %d links", len(usages)))
	s.indexDocument(documentID, doc.Title, newContent)
	s.catalog.Invalidate(ctx, linkIDs...)

	return CommitResult{
		DocumentID:  documentID,
		Inserted:    len(usages),
		LinkCount:   doc.LinkCount + len(usages),
		OptimizedAt: now,
	}, nil
}

type RollbackResult struct {
	DocumentID    string `json:"documentId"`
	Restored      bool   `json:"restored"`
	RemovedUsages int    `json:"removedUsages"`
}

// Rollback restores the pre-optimization body and clears the backup. It undoes
// every auto-inserted link recorded since the backup was taken.
func (s *Service) Rollback(ctx context.Context, documentID string) (RollbackResult, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return RollbackResult{}, err
	}

	removed, err := s.store.ApplyRollback(ctx, documentID)
	if errors.Is(err, store.ErrNoBackup) {
		return RollbackResult{}, domainError(http.StatusConflict, "NO_BACKUP",
			"document has no stored pre-optimization body", nil)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return RollbackResult{}, domainError(http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found", nil)
	}
	if err != nil {
		return RollbackResult{}, err
	}

	if doc.OriginalContent != nil {
		s.recordRevision(documentID, *doc.OriginalContent, "Roll back optimization")
		s.indexDocument(documentID, doc.Title, *doc.OriginalContent)
	}
	return RollbackResult{DocumentID: documentID, Restored: true, RemovedUsages: removed}, nil
}

// RemoveInput selects which auto-inserted links to strip. An empty list means
// all of them.
type RemoveInput struct {
	LinkIDs []string `json:"linkIds"`
}

type RemoveResult struct {
	DocumentID string `json:"documentId"`
	Removed    int    `json:"removed"`
}

// RemoveAutoLinks unwraps the selected auto-inserted links in place. Unlike
// Rollback this is a forward edit: the stored backup is left as it was, so a
// later rollback still restores the true pre-optimization body.
func (s *Service) RemoveAutoLinks(ctx context.Context, documentID string, input RemoveInput) (RemoveResult, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return RemoveResult{}, err
	}

	usages, err := s.store.ListAutoLinkUsages(ctx, documentID)
	if err != nil {
		return RemoveResult{}, err
	}

	selected := usages
	if len(input.LinkIDs) > 0 {
		wanted := make(map[string]struct{}, len(input.LinkIDs))
		for _, linkID := range input.LinkIDs {
			wanted[linkID] = struct{}{}
		}
		selected = selected[:0:0]
		for _, usage := range usages {
			if _, ok := wanted[usage.LinkID]; ok {
				selected = append(selected, usage)
			}
		}
	}
	if len(selected) == 0 {
		return RemoveResult{DocumentID: documentID, Removed: 0}, nil
	}

	linkIDs := make([]string, 0, len(selected))
	for _, usage := range selected {
		linkIDs = append(linkIDs, usage.LinkID)
	}
	snapshot, err := s.catalog.Snapshot(ctx, linkIDs)
	if err != nil {
		return RemoveResult{}, err
	}

	body := doc.Content
	consumedUsageIDs := make([]int64, 0, len(selected))
	consumedLinkIDs := make([]string, 0, len(selected))
	for _, usage := range selected {
		entry, ok := snapshot[usage.LinkID]
		if !ok {
			log.Printf("app: remove links %s: link %s missing from catalog, skipping", documentID, usage.LinkID)
			continue
		}
		next, found := linker.UnwrapLink(body, entry.URL)
		if !found {
			log.Printf("app: remove links %s: no marked link for %s in body, skipping", documentID, usage.LinkID)
			continue
		}
		body = next
		consumedUsageIDs = append(consumedUsageIDs, usage.ID)
		consumedLinkIDs = append(consumedLinkIDs, usage.LinkID)
	}
	if len(consumedUsageIDs) == 0 {
		return RemoveResult{DocumentID: documentID, Removed: 0}, nil
	}

	if err := s.store.ApplyAutoRemoval(ctx, documentID, body, consumedUsageIDs, consumedLinkIDs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RemoveResult{}, domainError(http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found", nil)
		}
		return RemoveResult{}, err
	}

	s.recordRevision(documentID, body, fmt.Sprintf("Remove %d auto links", len(consumedUsageIDs)))
	s.indexDocument(documentID, doc.Title, body)
	s.catalog.Invalidate(ctx, consumedLinkIDs...)

	return RemoveResult{DocumentID: documentID, Removed: len(consumedUsageIDs)}, nil
}

// LinkUsagePayload is the wire shape of a usage audit row.
type LinkUsagePayload struct {
	ID              int64     `json:"id"`
	LinkID          string    `json:"linkId"`
	AnchorText      string    `json:"anchorText"`
	ContextSnippet  string    `json:"contextSnippet"`
	Position        int       `json:"position"`
	WasAutoInserted bool      `json:"wasAutoInserted"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (s *Service) ListLinkUsages(ctx context.Context, documentID string) ([]LinkUsagePayload, error) {
	if _, err := s.getDocument(ctx, documentID); err != nil {
		return nil, err
	}
	usages, err := s.store.ListLinkUsages(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]LinkUsagePayload, 0, len(usages))
	for _, usage := range usages {
		items = append(items, LinkUsagePayload{
			ID:              usage.ID,
			LinkID:          usage.LinkID,
			AnchorText:      usage.AnchorText,
			ContextSnippet:  usage.ContextSnippet,
			Position:        usage.Position,
			WasAutoInserted: usage.WasAutoInserted,
			CreatedAt:       usage.CreatedAt,
		})
	}
	return items, nil
}

// CatalogEntryPayload is the wire shape of a catalog entry.
type CatalogEntryPayload struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Keywords   string `json:"keywords"`
	Category   string `json:"category"`
	Priority   int    `json:"priority"`
	IsActive   bool   `json:"isActive"`
	PageExists bool   `json:"pageExists"`
	UsageCount int    `json:"usageCount"`
}

func catalogPayload(entry store.LinkCatalogEntry) CatalogEntryPayload {
	return CatalogEntryPayload{
		ID:         entry.ID,
		URL:        entry.URL,
		Title:      entry.Title,
		Keywords:   entry.Keywords,
		Category:   entry.Category,
		Priority:   entry.Priority,
		IsActive:   entry.IsActive,
		PageExists: entry.PageExists,
		UsageCount: entry.UsageCount,
	}
}

func (s *Service) ListCatalog(ctx context.Context) ([]CatalogEntryPayload, error) {
	entries, err := s.store.ListCatalogEntries(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]CatalogEntryPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, catalogPayload(entry))
	}
	return items, nil
}

func (s *Service) GetCatalogEntry(ctx context.Context, linkID string) (CatalogEntryPayload, error) {
	entry, err := s.store.GetCatalogEntry(ctx, linkID)
	if errors.Is(err, sql.ErrNoRows) {
		return CatalogEntryPayload{}, domainError(http.StatusNotFound, "LINK_NOT_FOUND", "catalog entry not found", nil)
	}
	if err != nil {
		return CatalogEntryPayload{}, err
	}
	return catalogPayload(entry), nil
}

type VerifyResult struct {
	LinkID     string `json:"linkId"`
	URL        string `json:"url"`
	PageExists bool   `json:"pageExists"`
}

// VerifyCatalogEntry loads the entry's target in headless Chrome and persists
// the observed page_exists flag.
func (s *Service) VerifyCatalogEntry(ctx context.Context, linkID string) (VerifyResult, error) {
	if s.verifier == nil {
		return VerifyResult{}, domainError(http.StatusServiceUnavailable, "VERIFY_UNAVAILABLE",
			"page verification is not configured", nil)
	}

	entry, err := s.store.GetCatalogEntry(ctx, linkID)
	if errors.Is(err, sql.ErrNoRows) {
		return VerifyResult{}, domainError(http.StatusNotFound, "LINK_NOT_FOUND", "catalog entry not found", nil)
	}
	if err != nil {
		return VerifyResult{}, err
	}

	exists, err := s.verifier.PageExists(ctx, entry.URL)
	if errors.Is(err, verify.ErrChromeMissing) {
		return VerifyResult{}, domainError(http.StatusServiceUnavailable, "VERIFY_UNAVAILABLE", err.Error(), nil)
	}
	if err != nil {
		return VerifyResult{}, err
	}

	if err := s.store.SetPageExists(ctx, linkID, exists); err != nil {
		return VerifyResult{}, err
	}
	s.catalog.Invalidate(ctx, linkID)

	return VerifyResult{LinkID: linkID, URL: entry.URL, PageExists: exists}, nil
}

// History returns the revision audit trail for a document, newest first.
func (s *Service) History(ctx context.Context, documentID string, limit int) ([]revlog.Revision, error) {
	if s.revisions == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE",
			"revision history is not configured", nil)
	}
	if _, err := s.getDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.revisions.History(documentID, limit)
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) recordRevision(documentID, body, message string) {
	if s.revisions == nil {
		return
	}
	if err := s.revisions.Record(documentID, body, message); err != nil {
		log.Printf("app: record revision for %s: %v", documentID, err)
	}
}

func (s *Service) indexDocument(documentID, title, body string) {
	if s.search == nil {
		return
	}
	s.search.IndexDocument(search.DocumentRecord{ID: documentID, Title: title, Body: body})
}

// Bootstrap seeds demo documents and catalog entries on an empty database and
// pushes everything to the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	documents, err := s.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(documents) > 0 {
		if s.search != nil {
			s.search.ReindexAllFromPG(ctx)
		}
		return nil
	}

	docSeeds := []store.Document{
		{
			ID:    "guide-phuket-beaches",
			Title: "The Complete Guide to Phuket Beaches",
			Content: "<h1>The Complete Guide to Phuket Beaches</h1>" +
				"<p>Phuket has more than thirty named beaches along its west coast. " +
				"Kata and Karon suit families, while Surin and Bang Tao attract " +
				"visitors looking for quieter sand and long-stay villa rentals. " +
				"The southern capes reward travellers who rent a scooter and explore.</p>",
		},
		{
			ID:    "guide-villa-buying",
			Title: "Buying a Villa in Thailand: What Foreign Buyers Should Know",
			Content: "<h1>Buying a Villa in Thailand</h1>" +
				"<p>Foreign buyers cannot own land outright, so most villa purchases " +
				"run through a registered leasehold. A good property lawyer will " +
				"structure the lease and review the developer's title documents " +
				"before any deposit changes hands.</p>",
		},
	}
	for _, seed := range docSeeds {
		if err := s.store.InsertDocument(ctx, seed); err != nil {
			return err
		}
		s.recordRevision(seed.ID, seed.Content, "Seed document")
	}

	catalogSeeds := []store.LinkCatalogEntry{
		{ID: "cat-villas", URL: "/guides/phuket-villas", Title: "Phuket Villa Guide", Keywords: "villa rentals, luxury villas", Category: "guides", Priority: 10, IsActive: true, PageExists: true},
		{ID: "cat-beaches", URL: "/guides/beaches", Title: "Beach Directory", Keywords: "beaches, kata, karon, surin", Category: "guides", Priority: 8, IsActive: true, PageExists: true},
		{ID: "cat-lawyers", URL: "/services/property-lawyers", Title: "Property Lawyers", Keywords: "leasehold, title, lawyer", Category: "services", Priority: 5, IsActive: true, PageExists: true},
	}
	for _, seed := range catalogSeeds {
		if err := s.store.InsertCatalogEntry(ctx, seed); err != nil {
			return err
		}
	}

	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}
