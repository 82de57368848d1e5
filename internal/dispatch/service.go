package dispatch

// Operator-facing queries over the unmatched queue and the aggregate
// counters. Mutation of both happens inside the engine's dispatch pass.

func (e *Engine) ListUnmatched(includeReviewed bool, offset, limit int) ([]UnmatchedResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var reviewed *bool
	if !includeReviewed {
		f := false
		reviewed = &f
	}

	entries, err := e.repo.ListUnmatched(reviewed, offset, limit)
	if err != nil {
		e.logger.Error("failed to list unmatched payments", "error", err)
		return nil, err
	}

	responses := make([]UnmatchedResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, UnmatchedResponse{
			ID:        entry.ID,
			PaymentID: entry.PaymentID,
			Attempts:  decodeAttempts(entry.AttemptedSites),
			Reviewed:  entry.Reviewed,
			Notes:     entry.Notes,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.UpdatedAt,
		})
	}
	return responses, nil
}

func (e *Engine) ReviewUnmatched(id int64, dto ReviewDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	var notes *string
	if dto.Notes != "" {
		n := dto.Notes
		notes = &n
	}

	if err := e.repo.MarkReviewed(id, notes); err != nil {
		e.logger.Error("failed to mark unmatched payment reviewed", "id", id, "error", err)
		return err
	}

	e.logger.Info("unmatched payment reviewed", "id", id)
	return nil
}

func (e *Engine) Statistics() (*StatisticsResponse, error) {
	stats, err := e.repo.GetStatistics()
	if err != nil {
		e.logger.Error("failed to load dispatch statistics", "error", err)
		return nil, err
	}

	response := &StatisticsResponse{
		TotalDispatched:  stats.TotalDispatched,
		TotalMatched:     stats.TotalMatched,
		TotalUnmatched:   stats.TotalUnmatched,
		TotalFailed:      stats.TotalFailed,
		LastDispatchTime: stats.LastDispatchTime,
	}
	if stats.TotalDispatched > 0 {
		response.MatchRate = float64(stats.TotalMatched) / float64(stats.TotalDispatched)
	}
	return response, nil
}
