// Package mcpapi provides a stateless MCP streamable-HTTP adapter over the
// board service.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/ritning/internal/app"
	"github.com/hylla/ritning/internal/domain"
	"github.com/hylla/ritning/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter backed by the board service.
func NewHandler(cfg Config, service *app.Service) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, service)
	registerStructureTools(mcpSrv, service)
	registerBlockTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "ritning"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerBoardTools registers whole-board read and refresh tools.
func registerBoardTools(srv *mcpserver.MCPServer, service *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"ritning.get_board",
			mcp.WithDescription("Return the full board: phases with their columns in display order plus the flat block sequence."),
			mcp.WithBoolean("refresh", mcp.Description("Reload the board from the store before returning it")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var board domain.Board
			if req.GetBool("refresh", false) {
				refreshed, err := service.Refresh(ctx)
				if err != nil {
					return toolResultFromError(err), nil
				}
				board = refreshed
			} else {
				board = service.Board()
			}
			result, err := mcp.NewToolResultJSON(board)
			if err != nil {
				return nil, fmt.Errorf("encode get_board result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.undo",
			mcp.WithDescription("Undo the most recent destructive block operation."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			label, err := service.Undo(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"undone": label})
			if err != nil {
				return nil, fmt.Errorf("encode undo result: %w", err)
			}
			return result, nil
		},
	)
}

// registerStructureTools registers phase and column tools.
func registerStructureTools(srv *mcpserver.MCPServer, service *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"ritning.add_phase",
			mcp.WithDescription("Append a phase to the board."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Phase name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			phase, err := service.AddPhase(ctx, name)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(phase)
			if err != nil {
				return nil, fmt.Errorf("encode add_phase result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.move_phase",
			mcp.WithDescription("Swap two phases. Block coordinates are transposed with them."),
			mcp.WithNumber("from", mcp.Required(), mcp.Description("Phase index to move")),
			mcp.WithNumber("to", mcp.Required(), mcp.Description("Phase index to swap with")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			from, err := req.RequireInt("from")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			to, err := req.RequireInt("to")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := service.MovePhase(ctx, from, to); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"moved": true})
			if err != nil {
				return nil, fmt.Errorf("encode move_phase result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.delete_phase",
			mcp.WithDescription("Delete a phase with its columns and blocks; later phases shift down."),
			mcp.WithNumber("phase", mcp.Required(), mcp.Description("Phase index")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			phase, err := req.RequireInt("phase")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := service.DeletePhase(ctx, phase); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"deleted": true})
			if err != nil {
				return nil, fmt.Errorf("encode delete_phase result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.add_column",
			mcp.WithDescription("Append a column to a phase."),
			mcp.WithNumber("phase", mcp.Required(), mcp.Description("Phase index")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Column name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			phase, err := req.RequireInt("phase")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			column, err := service.AddColumn(ctx, phase, name)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(column)
			if err != nil {
				return nil, fmt.Errorf("encode add_column result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.move_column",
			mcp.WithDescription("Move a column to an insertion point, possibly in another phase. Blocks follow their column."),
			mcp.WithNumber("from_phase", mcp.Required(), mcp.Description("Source phase index")),
			mcp.WithNumber("from_column", mcp.Required(), mcp.Description("Source column index")),
			mcp.WithNumber("to_phase", mcp.Required(), mcp.Description("Destination phase index")),
			mcp.WithNumber("to_column", mcp.Required(), mcp.Description("Destination insertion index")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			coords, err := requireInts(req, "from_phase", "from_column", "to_phase", "to_column")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			from := domain.Coordinate{Phase: coords[0], Column: coords[1]}
			to := domain.Coordinate{Phase: coords[2], Column: coords[3]}
			if err := service.MoveColumn(ctx, from, to); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"moved": true})
			if err != nil {
				return nil, fmt.Errorf("encode move_column result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.delete_column",
			mcp.WithDescription("Delete a column with its blocks; later siblings shift down."),
			mcp.WithNumber("phase", mcp.Required(), mcp.Description("Phase index")),
			mcp.WithNumber("column", mcp.Required(), mcp.Description("Column index")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			coords, err := requireInts(req, "phase", "column")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := service.DeleteColumn(ctx, domain.Coordinate{Phase: coords[0], Column: coords[1]}); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"deleted": true})
			if err != nil {
				return nil, fmt.Errorf("encode delete_column result: %w", err)
			}
			return result, nil
		},
	)
}

// appendPosition is past any realistic cell, so an omitted position lands
// the block at the end of the destination cell.
const appendPosition = 1 << 30

// registerBlockTools registers block creation, movement, and bulk tools.
func registerBlockTools(srv *mcpserver.MCPServer, service *app.Service) {
	blockTypes := make([]string, 0, len(domain.ValidBlockTypes()))
	for _, bt := range domain.ValidBlockTypes() {
		blockTypes = append(blockTypes, string(bt))
	}

	srv.AddTool(
		mcp.NewTool(
			"ritning.create_block",
			mcp.WithDescription("Create a block in a cell, appended after the cell's existing blocks."),
			mcp.WithString("type", mcp.Required(), mcp.Description("Block type"), mcp.Enum(blockTypes...)),
			mcp.WithNumber("phase", mcp.Required(), mcp.Description("Destination phase index")),
			mcp.WithNumber("column", mcp.Required(), mcp.Description("Destination column index")),
			mcp.WithString("content", mcp.Description("Block content (defaults per type)")),
			mcp.WithString("department", mcp.Description("Owning department")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			blockType, err := req.RequireString("type")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			coords, err := requireInts(req, "phase", "column")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			block, err := service.CreateBlock(ctx, app.CreateBlockInput{
				Type:       domain.BlockType(blockType),
				Content:    req.GetString("content", ""),
				Coord:      domain.Coordinate{Phase: coords[0], Column: coords[1]},
				Department: req.GetString("department", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(block)
			if err != nil {
				return nil, fmt.Errorf("encode create_block result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.move_block",
			mcp.WithDescription("Move or duplicate a block into a cell at a display position."),
			mcp.WithString("block_id", mcp.Required(), mcp.Description("Block identifier")),
			mcp.WithNumber("phase", mcp.Required(), mcp.Description("Destination phase index")),
			mcp.WithNumber("column", mcp.Required(), mcp.Description("Destination column index")),
			mcp.WithNumber("position", mcp.Description("Display position in the destination cell (0 = top, omitted = end)")),
			mcp.WithBoolean("duplicate", mcp.Description("Copy the block instead of moving it")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			blockID, err := req.RequireString("block_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			coords, err := requireInts(req, "phase", "column")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			block, _, ok := service.Board().BlockByID(blockID)
			if !ok {
				return toolResultFromError(app.ErrNotFound), nil
			}
			dest := domain.Coordinate{Phase: coords[0], Column: coords[1]}
			res, err := service.HandleDrop(ctx, engine.DropEvent{
				SourceID:         engine.CellID(block.Coord),
				DestinationID:    engine.CellID(dest),
				DraggedID:        blockID,
				Kind:             engine.DragBlock,
				DestinationIndex: req.GetInt("position", appendPosition),
				Duplicate:        req.GetBool("duplicate", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"changed": res.Changed,
				"reason":  res.Reason,
			})
			if err != nil {
				return nil, fmt.Errorf("encode move_block result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.update_block",
			mcp.WithDescription("Update a block's content, notes, department, or flag."),
			mcp.WithString("block_id", mcp.Required(), mcp.Description("Block identifier")),
			mcp.WithString("content", mcp.Description("New content")),
			mcp.WithString("notes", mcp.Description("New markdown notes")),
			mcp.WithString("department", mcp.Description("New owning department")),
			mcp.WithBoolean("flagged", mcp.Description("New flag state")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			blockID, err := req.RequireString("block_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args := req.GetArguments()
			in := app.UpdateBlockInput{BlockID: blockID}
			if _, ok := args["content"]; ok {
				v := req.GetString("content", "")
				in.Content = &v
			}
			if _, ok := args["notes"]; ok {
				v := req.GetString("notes", "")
				in.Notes = &v
			}
			if _, ok := args["department"]; ok {
				v := req.GetString("department", "")
				in.Department = &v
			}
			if _, ok := args["flagged"]; ok {
				v := req.GetBool("flagged", false)
				in.Flagged = &v
			}
			block, err := service.UpdateBlock(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(block)
			if err != nil {
				return nil, fmt.Errorf("encode update_block result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.delete_blocks",
			mcp.WithDescription("Delete blocks by id in one undoable batch."),
			mcp.WithArray("block_ids", mcp.Required(), mcp.Description("Block identifiers"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			blockIDs := req.GetStringSlice("block_ids", nil)
			if len(blockIDs) == 0 {
				return mcp.NewToolResultError("block_ids is required"), nil
			}
			removed, err := service.BulkDeleteBlocks(ctx, blockIDs)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"removed": removed})
			if err != nil {
				return nil, fmt.Errorf("encode delete_blocks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.clear_emoji",
			mcp.WithDescription("Clear every emoji reaction on the board in one undoable sweep."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			cleared, err := service.ClearAllEmoji(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"cleared": cleared})
			if err != nil {
				return nil, fmt.Errorf("encode clear_emoji result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ritning.add_comment",
			mcp.WithDescription("Append a comment to a block."),
			mcp.WithString("block_id", mcp.Required(), mcp.Description("Block identifier")),
			mcp.WithString("body", mcp.Required(), mcp.Description("Comment body")),
			mcp.WithString("author", mcp.Description("Comment author")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			blockID, err := req.RequireString("block_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			body, err := req.RequireString("body")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			comment, err := service.AddBlockComment(ctx, blockID, req.GetString("author", ""), body)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(comment)
			if err != nil {
				return nil, fmt.Errorf("encode add_comment result: %w", err)
			}
			return result, nil
		},
	)
}

// requireInts reads a set of required integer arguments in order.
func requireInts(req mcp.CallToolRequest, keys ...string) ([]int, error) {
	out := make([]int, 0, len(keys))
	for _, key := range keys {
		v, err := req.RequireInt(key)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, app.ErrPhaseOutOfRange),
		errors.Is(err, app.ErrColumnOutOfRange),
		errors.Is(err, app.ErrLastPhase),
		errors.Is(err, app.ErrInvalidDepartment),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidBlockType),
		errors.Is(err, domain.ErrInvalidCoordinate):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, app.ErrNothingToUndo):
		return mcp.NewToolResultError("nothing_to_undo: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
