package internal

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/starford/notecommits/internal/mcpserver"
	"github.com/starford/notecommits/internal/render"
	"github.com/starford/notecommits/internal/spotlight"
)

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := bootstrap(ctx, app, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.tracker.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.tracker, c.spotlight).ServeStdio()
}

// ReportRequest selects the block printed by Report.
type ReportRequest struct {
	Kind    string
	Project string
	Top     int
}

// Report reconciles the vault once and prints a commit block as a table.
func Report(ctx context.Context, req ReportRequest, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := bootstrap(ctx, app, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.tracker.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	source := "project=" + req.Project
	if req.Top > 0 {
		source += fmt.Sprintf("\ntop=%d", req.Top)
	}
	view, err := c.tracker.Render(req.Kind, source)
	if err != nil {
		return err
	}
	return render.WriteTable(app.out, view)
}

// Spotlight prints a random note, or a random block with req.Block set.
func Spotlight(ctx context.Context, req spotlight.Request, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := bootstrap(ctx, app, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.spotlight.Spotlight(ctx, req)
	if err != nil {
		return err
	}
	if res.Message != "" {
		_, err = fmt.Fprintln(app.out, color.New(color.FgYellow).Sprint(res.Message))
		return err
	}

	ref := res.Path
	if res.BlockID != "" {
		ref += "#^" + res.BlockID
	}
	header := color.New(color.FgCyan, color.Bold).SprintFunc()
	_, err = fmt.Fprintf(app.out, "%s\n\n%s\n", header(ref), res.Text)
	return err
}
