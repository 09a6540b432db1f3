// Package google stores records in a Google Sheets spreadsheet, one tab per
// table sheet, with the table's headers on the first row.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"scuola/internal/log"
	"scuola/internal/sheets"
)

const (
	// rawInput stores strings exactly as given so dates are never reformatted.
	rawInput = "RAW"
	// insertRows makes the API place an appended row below the table's last row
	// instead of overwriting whatever a racing writer put there.
	insertRows = "INSERT_ROWS"

	defaultMetadataTTL = 2 * time.Minute
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	// MetadataTTL bounds how long tab ids are trusted before the spreadsheet is re-read.
	MetadataTTL time.Duration
}

type Store struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger

	mu                 sync.Mutex
	sheetIDs           map[string]int64
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	now                func() time.Time

	// tabMu serializes read-check-write sequences per tab within this process.
	tabMu    sync.Mutex
	tabLocks map[string]*sync.Mutex
}

var (
	_ sheets.Store         = (*Store)(nil)
	_ sheets.HealthChecker = (*Store)(nil)
)

// New creates a store authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)
	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.MetadataTTL, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, metadataTTL time.Duration, logger *log.Logger) *Store {
	if metadataTTL <= 0 {
		metadataTTL = defaultMetadataTTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(spreadsheetID),
		logger:             logger,
		sheetIDs:           make(map[string]int64),
		tabLocks:           make(map[string]*sync.Mutex),
		cacheValidDuration: metadataTTL,
		now:                time.Now,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// TabName maps a ref to its tab: the bare table name for the default sheet,
// TABLE_sheet otherwise.
func TabName(ref sheets.Ref) string {
	if ref.Sheet == sheets.DefaultSheet {
		return string(ref.Table)
	}
	return string(ref.Table) + "_" + ref.Sheet
}

// a1 quotes the tab so names with dashes or spaces parse.
func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

// sheetRow converts a 0-based data index to its 1-based sheet row, below the header.
func sheetRow(index int) int { return index + 2 }

func (s *Store) Rows(ctx context.Context, ref sheets.Ref) ([]sheets.Row, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	tab := TabName(ref)
	if _, ok, err := s.sheetID(ctx, tab); err != nil || !ok {
		return nil, err
	}
	return s.readRows(ctx, ref, tab)
}

func (s *Store) readRows(ctx context.Context, ref sheets.Ref, tab string) ([]sheets.Row, error) {
	rng := a1(tab, "A2:ZZ")
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	width := len(sheets.MustSchema(ref.Table).Headers)
	out := make([]sheets.Row, 0, len(resp.Values))
	for _, v := range resp.Values {
		out = append(out, toRow(v, width))
	}
	return out, nil
}

// toRow pads or cuts API values to the header width.
func toRow(values []interface{}, width int) sheets.Row {
	row := make(sheets.Row, width)
	for i := 0; i < width && i < len(values); i++ {
		if values[i] != nil {
			row[i] = fmt.Sprint(values[i])
		}
	}
	return row
}

func toValues(row sheets.Row) []interface{} {
	out := make([]interface{}, len(row))
	for i, c := range row {
		out[i] = c
	}
	return out
}

func (s *Store) Append(ctx context.Context, ref sheets.Ref, row sheets.Row) error {
	schema, row, err := prepare(ref, row)
	if err != nil {
		return err
	}
	tab := TabName(ref)
	unlock := s.lockTab(tab)
	defer unlock()

	if err := s.ensure(ctx, ref, tab); err != nil {
		return err
	}
	rows, err := s.readRows(ctx, ref, tab)
	if err != nil {
		return err
	}
	// Other processes can still race this check; the append itself never
	// lands on an occupied row.
	if err := schema.CheckKey(rows, row); err != nil {
		return err
	}
	rng := a1(tab, "A1")
	vr := &gsheet.ValueRange{Values: [][]interface{}{toValues(row)}}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption(rawInput).InsertDataOption(insertRows).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, ref sheets.Ref, index int, row sheets.Row) error {
	_, row, err := prepare(ref, row)
	if err != nil {
		return err
	}
	tab := TabName(ref)
	unlock := s.lockTab(tab)
	defer unlock()

	if err := s.checkIndex(ctx, ref, index); err != nil {
		return err
	}
	return s.writeRow(ctx, a1(tab, fmt.Sprintf("A%d", sheetRow(index))), row)
}

func (s *Store) Delete(ctx context.Context, ref sheets.Ref, index int) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	tab := TabName(ref)
	unlock := s.lockTab(tab)
	defer unlock()

	if err := s.checkIndex(ctx, ref, index); err != nil {
		return err
	}
	id, _, err := s.sheetID(ctx, tab)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    id,
			Dimension:  "ROWS",
			StartIndex: int64(sheetRow(index) - 1),
			EndIndex:   int64(sheetRow(index)),
		}},
	}}}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", index, tab, err)
	}
	return nil
}

// Ensure adds the tab with its header row when the spreadsheet lacks it.
func (s *Store) Ensure(ctx context.Context, ref sheets.Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	tab := TabName(ref)
	unlock := s.lockTab(tab)
	defer unlock()
	return s.ensure(ctx, ref, tab)
}

// ensure expects the tab lock held, so no append can reach the tab before its
// header row is written.
func (s *Store) ensure(ctx context.Context, ref sheets.Ref, tab string) error {
	if _, ok, err := s.sheetID(ctx, tab); err != nil || ok {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		// Another writer may have created it since the metadata was cached.
		s.InvalidateMetadata()
		if _, ok, lookupErr := s.sheetID(ctx, tab); lookupErr == nil && ok {
			return nil
		}
		return fmt.Errorf("add sheet %s: %w", tab, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		s.mu.Lock()
		s.sheetIDs[tab] = resp.Replies[0].AddSheet.Properties.SheetId
		s.mu.Unlock()
	} else {
		s.InvalidateMetadata()
	}
	headers := sheets.Row(sheets.MustSchema(ref.Table).Headers)
	if err := s.writeRow(ctx, a1(tab, "A1"), headers); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Created sheet", log.FieldTable, string(ref.Table), log.FieldSheet, ref.Sheet)
	return nil
}

// Ping reads the spreadsheet id back as a cheap reachability probe.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("ping spreadsheet: %w", err)
	}
	return nil
}

// InvalidateMetadata forces the next lookup to re-read the tab list.
func (s *Store) InvalidateMetadata() {
	s.mu.Lock()
	s.cacheExpiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *Store) writeRow(ctx context.Context, rng string, row sheets.Row) error {
	vr := &gsheet.ValueRange{Values: [][]interface{}{toValues(row)}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption(rawInput).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

func (s *Store) checkIndex(ctx context.Context, ref sheets.Ref, index int) error {
	rows, err := s.Rows(ctx, ref)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("%w: %s[%d]", sheets.ErrRowIndex, ref, index)
	}
	return nil
}

func (s *Store) lockTab(tab string) func() {
	s.tabMu.Lock()
	m := s.tabLocks[tab]
	if m == nil {
		m = new(sync.Mutex)
		s.tabLocks[tab] = m
	}
	s.tabMu.Unlock()
	m.Lock()
	return m.Unlock
}

// sheetID resolves a tab title, re-reading spreadsheet metadata once the cache expires.
func (s *Store) sheetID(ctx context.Context, tab string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now().Before(s.cacheExpiresAt) {
		id, ok := s.sheetIDs[tab]
		return id, ok, nil
	}
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	ids := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	s.sheetIDs = ids
	s.cacheExpiresAt = s.now().Add(s.cacheValidDuration)
	id, ok := ids[tab]
	return id, ok, nil
}

func prepare(ref sheets.Ref, row sheets.Row) (sheets.Schema, sheets.Row, error) {
	if err := ref.Validate(); err != nil {
		return sheets.Schema{}, nil, err
	}
	schema := sheets.MustSchema(ref.Table)
	row, err := schema.Normalize(row)
	return schema, row, err
}
