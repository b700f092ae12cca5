package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/storage"
)

// HistoryResponse contains the conversation history for a given node.
type HistoryResponse struct {
	// Messages in chronological order (oldest first, up to and including the requested node)
	Messages []HistoryMessage `json:"messages"`
	// HeadHash is the hash of the node that was requested
	HeadHash string `json:"head_hash"`
	// Depth is the number of messages in the history
	Depth int `json:"depth"`
}

// HistoryMessage represents a message in the conversation history.
type HistoryMessage struct {
	Hash       string  `json:"hash"`
	ParentHash *string `json:"parent_hash,omitempty"`
	Role       string  `json:"role"`
	Content    string  `json:"content"`
	Model      string  `json:"model,omitempty"`
	Language   string  `json:"language,omitempty"`
	Project    string  `json:"project,omitempty"`
	Partial    bool    `json:"partial,omitempty"`
}

// StatsResponse summarizes the DAG.
type StatsResponse struct {
	TotalNodes int `json:"total_nodes"`
	RootCount  int `json:"root_count"`
	LeafCount  int `json:"leaf_count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleDAGStats returns statistics about the DAG.
func (s *Server) handleDAGStats(c *fiber.Ctx) error {
	ctx := c.Context()

	nodes, err := s.driver.List(ctx)
	if err != nil {
		return s.internalError(c, "failed to list nodes", err)
	}

	roots, err := s.driver.Roots(ctx)
	if err != nil {
		return s.internalError(c, "failed to get roots", err)
	}

	leaves, err := s.driver.Leaves(ctx)
	if err != nil {
		return s.internalError(c, "failed to get leaves", err)
	}

	return c.JSON(StatsResponse{
		TotalNodes: len(nodes),
		RootCount:  len(roots),
		LeafCount:  len(leaves),
	})
}

// handleGetNode returns a single node by its hash.
func (s *Server) handleGetNode(c *fiber.Ctx) error {
	node, err := s.driver.Get(c.Context(), c.Params("hash"))
	if err != nil {
		return s.lookupError(c, err)
	}

	return c.JSON(node)
}

// handleListHistories returns all conversation histories (one per leaf node).
// An optional ?project= query narrows the result.
func (s *Server) handleListHistories(c *fiber.Ctx) error {
	ctx := c.Context()
	project := c.Query("project")

	leaves, err := s.driver.Leaves(ctx)
	if err != nil {
		return s.internalError(c, "failed to get leaves", err)
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		if project != "" && leaf.Project != project {
			continue
		}

		history, err := s.buildHistory(ctx, leaf.Hash)
		if err != nil {
			s.logger.Warn("failed to build history for leaf",
				"hash", leaf.Hash,
				"error", err,
			)
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(map[string]any{
		"count":     len(histories),
		"histories": histories,
	})
}

// handleGetHistory returns the full conversation history leading up to a given node.
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	history, err := s.buildHistory(c.Context(), c.Params("hash"))
	if err != nil {
		return s.lookupError(c, err)
	}

	return c.JSON(history)
}

// buildHistory constructs a HistoryResponse for the given node hash.
func (s *Server) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	ancestry, err := s.driver.Ancestry(ctx, hash)
	if err != nil {
		return nil, err
	}

	messages := make([]HistoryMessage, len(ancestry))
	for i, node := range ancestry {
		messages[len(ancestry)-1-i] = HistoryMessage{
			Hash:       node.Hash,
			ParentHash: node.ParentHash,
			Role:       node.Bucket.Role,
			Content:    node.Bucket.Content,
			Model:      node.Bucket.Model,
			Language:   node.Bucket.Language,
			Project:    node.Project,
			Partial:    node.Partial,
		}
	}

	return &HistoryResponse{
		Messages: messages,
		HeadHash: hash,
		Depth:    len(messages),
	}, nil
}

func (s *Server) lookupError(c *fiber.Ctx, err error) error {
	var nf storage.NotFoundError
	if errors.As(err, &nf) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
	}
	return s.internalError(c, "failed to read node", err)
}

func (s *Server) internalError(c *fiber.Ctx, msg string, err error) error {
	s.logger.Error(msg, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: msg})
}
