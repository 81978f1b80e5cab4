package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"paylens-backend/internal/dataset"
	"paylens-backend/internal/metadata"
	"paylens-backend/internal/storage"
)

// Handler serves the analytics API. Every endpoint works off an immutable
// snapshot of the dataset, so no handler holds locks across a request.
// Errors are returned as *AppError and translated by the app-level error
// handler.
type Handler struct {
	store    *dataset.Store
	registry *metadata.Registry
	provider ModelProvider
	staging  *storage.Staging
	opts     Options
}

// Options carries the tunables the analytics endpoints need.
type Options struct {
	OutlierStdMultiplier float64
	ModelTimeout         time.Duration
	CustomerSegments     *Segmenter
	MerchantSegments     *Segmenter
	DefaultSegments      *Segmenter
}

func NewHandler(store *dataset.Store, reg *metadata.Registry, provider ModelProvider, staging *storage.Staging, opts Options) *Handler {
	return &Handler{store: store, registry: reg, provider: provider, staging: staging, opts: opts}
}

// Upload handles POST /api/upload: stage, validate by parsing, promote.
func (h *Handler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "multipart field 'file' is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	stagedPath, err := h.staging.Stage(fileHeader.Filename, f)
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}

	rows, err := h.store.Replace(stagedPath)
	if err != nil {
		h.staging.Discard(stagedPath)
		return InvalidCSVError(err)
	}

	return c.Status(201).JSON(fiber.Map{
		"message":     "Dataset replaced successfully",
		"rows_loaded": rows,
	})
}

// Count handles GET /api/:entity/count.
func (h *Handler) Count(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	t, err := h.snapshot()
	if err != nil {
		return err
	}

	label := capitalize(strings.TrimSuffix(entity.IDColumn, "_id"))
	return c.JSON(SimpleStat{
		Metric: fmt.Sprintf("Unique %s Count", strings.ReplaceAll(label, "_", " ")),
		Value:  float64(UniqueCount(t, entity.IDColumn)),
	})
}

// Overview handles GET /api/:entity/:id/overview: one response bundling
// every per-entity metric.
func (h *Handler) Overview(c *fiber.Ctx) error {
	entity, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	granularity := c.Query("granularity", GranularityMonthly)
	if !ValidGranularity(granularity) {
		return NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("invalid granularity: %s", granularity))
	}
	mode, limit, err := topParams(c, "top_mode", "top_limit")
	if err != nil {
		return err
	}
	suffix := window.Suffix()

	return c.JSON(fiber.Map{
		"transaction_volume":        TransactionVolumeOverTime(t, granularity, suffix),
		"transaction_count":         TransactionCountOverTime(t, granularity, suffix),
		"average_transactions":      AverageTransactionOverTime(t, granularity, suffix),
		"customer_segmentation":     h.opts.CustomerSegments.Segment(t, metadata.ColCustomerID, "Customer Segmentation by Total Spend", suffix),
		"top_customers":             TopEntities(t, entity.IDColumn, metadata.ColCustomerID, mode, limit, suffix),
		"transaction_outliers":      TransactionOutliers(t, entity.IDColumn, metadata.ColCustomerID, h.opts.OutlierStdMultiplier, suffix),
		"days_between_transactions": DaysBetweenTransactions(t, entity.IDColumn, suffix),
	})
}

// TransactionVolume handles GET /api/:entity/:id/transaction-volume.
func (h *Handler) TransactionVolume(c *fiber.Ctx) error {
	return h.timeSeries(c, TransactionVolumeOverTime)
}

// TransactionCount handles GET /api/:entity/:id/transaction-count.
func (h *Handler) TransactionCount(c *fiber.Ctx) error {
	return h.timeSeries(c, TransactionCountOverTime)
}

// AverageTransactions handles GET /api/:entity/:id/average-transactions.
func (h *Handler) AverageTransactions(c *fiber.Ctx) error {
	return h.timeSeries(c, AverageTransactionOverTime)
}

func (h *Handler) timeSeries(c *fiber.Ctx, fn func(*dataset.Table, string, string) GraphData) error {
	_, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	granularity := c.Query("granularity", GranularityMonthly)
	if !ValidGranularity(granularity) {
		return NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("invalid granularity: %s", granularity))
	}
	return c.JSON(fn(t, granularity, window.Suffix()))
}

// CustomerSegmentation handles GET /api/:entity/:id/customer-segmentation.
func (h *Handler) CustomerSegmentation(c *fiber.Ctx) error {
	_, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	return c.JSON(h.opts.CustomerSegments.Segment(t, metadata.ColCustomerID, "Customer Segmentation by Total Spend", window.Suffix()))
}

// MerchantSegmentation handles GET /api/:entity/:id/merchant-segmentation.
func (h *Handler) MerchantSegmentation(c *fiber.Ctx) error {
	_, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	return c.JSON(h.opts.MerchantSegments.Segment(t, metadata.ColMerchantID, "Merchant Segmentation by Total Sales", window.Suffix()))
}

// Segmentation handles GET /api/:entity/:id/segmentation?by=<id column>.
// Customer and merchant columns use their tuned bands; any other entity id
// column falls back to the default bands.
func (h *Handler) Segmentation(c *fiber.Ctx) error {
	_, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	by := c.Query("by", metadata.ColCustomerID)
	if h.registry.FindByIDColumn(by) == nil {
		return NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("'by' must be an entity id column, got %s", by))
	}

	seg := h.opts.DefaultSegments
	prefix := capitalize(strings.TrimSuffix(by, "_id")) + " Segmentation by Total Amount"
	switch by {
	case metadata.ColCustomerID:
		seg = h.opts.CustomerSegments
		prefix = "Customer Segmentation by Total Spend"
	case metadata.ColMerchantID:
		seg = h.opts.MerchantSegments
		prefix = "Merchant Segmentation by Total Sales"
	}
	return c.JSON(seg.Segment(t, by, prefix, window.Suffix()))
}

// TopCustomers handles GET /api/:entity/:id/top-customers.
func (h *Handler) TopCustomers(c *fiber.Ctx) error {
	return h.topEntities(c, metadata.ColCustomerID)
}

// TopMerchants handles GET /api/:entity/:id/top-merchants.
func (h *Handler) TopMerchants(c *fiber.Ctx) error {
	return h.topEntities(c, metadata.ColMerchantID)
}

func (h *Handler) topEntities(c *fiber.Ctx, targetIDCol string) error {
	entity, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	mode, limit, err := topParams(c, "mode", "limit")
	if err != nil {
		return err
	}
	return c.JSON(TopEntities(t, entity.IDColumn, targetIDCol, mode, limit, window.Suffix()))
}

// Outliers handles GET /api/:entity/:id/transaction-outliers.
func (h *Handler) Outliers(c *fiber.Ctx) error {
	entity, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	return c.JSON(TransactionOutliers(t, entity.IDColumn, metadata.ColCustomerID, h.opts.OutlierStdMultiplier, window.Suffix()))
}

// DaysBetween handles GET /api/:entity/:id/days-between-transactions.
func (h *Handler) DaysBetween(c *fiber.Ctx) error {
	entity, t, window, err := h.scopedTable(c)
	if err != nil {
		return err
	}
	return c.JSON(DaysBetweenTransactions(t, entity.IDColumn, window.Suffix()))
}

// Export handles GET /api/:entity/:id/export with a CSV download of the
// scoped transactions.
func (h *Handler) Export(c *fiber.Ctx) error {
	entity, t, _, err := h.scopedTable(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%s_%s_data.csv`, strings.TrimSuffix(entity.IDColumn, "_id"), c.Params("id")))
	return c.SendString(renderCSV(t))
}

// StructuredFilter handles POST /api/:entity/filter with a filter
// expression body.
func (h *Handler) StructuredFilter(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	t, err := h.snapshot()
	if err != nil {
		return err
	}

	var expr Expr
	if err := expr.UnmarshalJSON(c.Body()); err != nil {
		return err
	}

	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	t, err = window.Apply(t)
	if err != nil {
		return err
	}

	entities, err := FilterEntities(t, &expr, entity)
	if err != nil {
		return err
	}
	return c.JSON(entities)
}

// NLQuery handles POST /api/:entity/nl-filter with {"query": "..."}. The
// grouping entity is chosen by the pipeline, not the route, so the :entity
// segment only validates which view the caller was browsing.
func (h *Handler) NLQuery(c *fiber.Ctx) error {
	if _, err := h.resolveEntity(c); err != nil {
		return err
	}
	t, err := h.snapshot()
	if err != nil {
		return err
	}

	var body struct {
		Query string `json:"query"`
	}
	if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Query) == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "body must contain a non-empty 'query'")
	}

	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	t, err = window.Apply(t)
	if err != nil {
		return err
	}

	entities, err := NLFilter(c.Context(), t, body.Query, h.registry, h.provider, h.opts.ModelTimeout)
	if err != nil {
		return err
	}
	return c.JSON(entities)
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("entity")
	entity := h.registry.GetEntity(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

func (h *Handler) snapshot() (*dataset.Table, error) {
	t, err := h.store.Snapshot()
	if err != nil {
		return nil, NoDatasetError()
	}
	return t, nil
}

// scopedTable resolves the entity, narrows the snapshot to the :id row set
// and applies the date window from the query string.
func (h *Handler) scopedTable(c *fiber.Ctx) (*metadata.Entity, *dataset.Table, TimeWindow, error) {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return nil, nil, TimeWindow{}, err
	}
	t, err := h.snapshot()
	if err != nil {
		return nil, nil, TimeWindow{}, err
	}

	id := c.Params("id")
	mask, err := Evaluate(t, Cmp(entity.IDColumn, OpEquals, id))
	if err != nil {
		return nil, nil, TimeWindow{}, err
	}
	t = t.Select(mask)
	if t.RowCount() == 0 {
		return nil, nil, TimeWindow{}, NotFoundError(strings.TrimSuffix(entity.IDColumn, "_id"), id)
	}

	window, err := parseWindow(c)
	if err != nil {
		return nil, nil, TimeWindow{}, err
	}
	t, err = window.Apply(t)
	if err != nil {
		return nil, nil, TimeWindow{}, err
	}
	if t.RowCount() == 0 {
		return nil, nil, TimeWindow{}, NewAppError("NOT_FOUND", 404, "no data matches the given filters")
	}
	return entity, t, window, nil
}

func parseWindow(c *fiber.Ctx) (TimeWindow, error) {
	var w TimeWindow
	fields := []struct {
		name string
		dst  *int
	}{
		{"year", &w.Year},
		{"month", &w.Month},
		{"week", &w.Week},
		{"day", &w.Day},
		{"range_days", &w.RangeDays},
	}
	for _, f := range fields {
		raw := c.Query(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return w, NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("invalid %s: %s", f.name, raw))
		}
		*f.dst = v
	}
	w.StartDate = c.Query("start_date")
	w.EndDate = c.Query("end_date")
	return w, nil
}

func topParams(c *fiber.Ctx, modeParam, limitParam string) (string, int, error) {
	mode := c.Query(modeParam, "amount")
	if mode != "amount" && mode != "count" {
		return "", 0, NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("invalid %s: %s", modeParam, mode))
	}
	limit := 10
	if raw := c.Query(limitParam); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return "", 0, NewAppError("INVALID_PAYLOAD", 400, fmt.Sprintf("invalid %s: %s", limitParam, raw))
		}
		limit = v
	}
	return mode, limit, nil
}

func renderCSV(t *dataset.Table) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.ColumnNames(), ","))
	b.WriteString("\n")
	for i := range t.Rows {
		for j, col := range t.Columns {
			if j > 0 {
				b.WriteString(",")
			}
			v, ok := t.Value(i, col.Name)
			if !ok {
				continue
			}
			switch cell := v.(type) {
			case float64:
				b.WriteString(strconv.FormatFloat(cell, 'f', -1, 64))
			case time.Time:
				b.WriteString(cell.Format("2006-01-02 15:04:05"))
			default:
				b.WriteString(fmt.Sprintf("%v", cell))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
