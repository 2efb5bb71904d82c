package controllers

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// AdminController serves the back-office ledger and repair endpoints.
type AdminController struct {
	ledger    *services.LedgerService
	inventory *services.InventoryService
}

func NewAdminController(ledger *services.LedgerService, inventory *services.InventoryService) *AdminController {
	return &AdminController{ledger: ledger, inventory: inventory}
}

// Transactions lists the newest ledger entries; ?limit defaults to 50.
func (ac *AdminController) Transactions(c *ctx.Context) {
	rows, err := ac.ledger.Recent(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Success(rows)
}

var backfillPage = template.Must(template.New("backfill").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Ledger backfill</title></head>
<body>
<h1>Ledger backfill</h1>
<table>
<tr><th>Inserted</th><td>{{.Inserted}}</td></tr>
<tr><th>Skipped (missing product or order)</th><td>{{.SkippedMissingFK}}</td></tr>
<tr><th>Skipped (already recorded)</th><td>{{.SkippedAlreadyExists}}</td></tr>
<tr><th>Started</th><td>{{.StartedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
<tr><th>Finished</th><td>{{.FinishedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
{{- if .ArchivedAt}}
<tr><th>Archived at</th><td>{{.ArchivedAt}}</td></tr>
{{- end}}
</table>
<pre>{{range .Log}}{{.}}
{{end}}</pre>
</body>
</html>
`))

// Backfill repairs missing order ledger entries. The report is JSON unless
// ?format=html or the client accepts text/html.
func (ac *AdminController) Backfill(c *ctx.Context) {
	report, err := ac.ledger.Backfill(c.Context())
	if err != nil {
		fail(c, err, "Backfill failed")
		return
	}
	if !wantsHTML(c) {
		c.Success(report)
		return
	}

	var buf bytes.Buffer
	if err := backfillPage.Execute(&buf, report); err != nil {
		logger.WithCtx(c.Context()).Error("admin: render backfill report", "error", err)
		c.Success(report)
		return
	}
	c.HTML(http.StatusOK, buf.Bytes())
}

// BackfillReports lists archived backfill reports.
func (ac *AdminController) BackfillReports(c *ctx.Context) {
	paths, err := ac.ledger.Reports(c.Context())
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	c.Success(paths)
}

// MigrateSizes gives products without size rows the default size run.
func (ac *AdminController) MigrateSizes(c *ctx.Context) {
	report, err := ac.inventory.MigrateSizes(c.Context())
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	c.Success(report)
}

func wantsHTML(c *ctx.Context) bool {
	switch strings.ToLower(c.Query("format")) {
	case "html":
		return true
	case "json":
		return false
	}
	accept := c.Header("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
