package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
	qb "github.com/riskibarqy/prediction-settlement/internal/platform/querybuilder"
)

type PredictionRepository struct {
	db *sqlx.DB
}

func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) SelectPending(ctx context.Context, filter prediction.Filter) ([]prediction.Prediction, error) {
	query, args, err := buildSelectPendingQuery(filter)
	if err != nil {
		return nil, err
	}

	var rows []predictionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select pending predictions: %w", err)
	}

	out := make([]prediction.Prediction, 0, len(rows))
	for _, row := range rows {
		item, err := predictionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// UpdateStatus applies the update only while the row still carries
// ExpectedStatus. Zero affected rows means another writer moved it first.
func (r *PredictionRepository) UpdateStatus(ctx context.Context, update prediction.StatusUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("update prediction %s: %w", update.ID, err)
	}

	query, args, err := buildUpdateStatusQuery(update)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update prediction status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected update prediction status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update prediction %s from %s: %w", update.ID, update.ExpectedStatus, prediction.ErrStatusConflict)
	}
	return nil
}

func buildSelectPendingQuery(filter prediction.Filter) (string, []any, error) {
	statuses := filter.EffectiveStatuses()
	values := make([]any, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	conditions := []qb.Condition{qb.In("status", values)}
	if filter.After != nil {
		conditions = append(conditions, qb.Expr("(created_at, id) > (?, ?)", filter.After.CreatedAt.UTC(), filter.After.ID))
	}

	query, args, err := qb.Select(predictionColumns...).From("predictions").
		Where(conditions...).
		OrderBy("created_at", "id").
		Limit(filter.Limit).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build select pending predictions query: %w", err)
	}
	return query, args, nil
}

func buildUpdateStatusQuery(update prediction.StatusUpdate) (string, []any, error) {
	query, args, err := qb.Update("predictions").
		Set("status", string(update.Status)).
		SetExpr("fixture_ref", "COALESCE(?, fixture_ref)", int64PtrArg(update.FixtureRef)).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("id", update.ID),
			qb.Eq("status", string(update.ExpectedStatus)),
		).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build update prediction status query: %w", err)
	}
	return query, args, nil
}

func predictionFromRow(row predictionTableModel) (prediction.Prediction, error) {
	status, err := prediction.ParseStatus(row.Status)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("prediction %s: %w", row.ID, err)
	}
	return prediction.Prediction{
		ID:              row.ID,
		HomeTeam:        row.HomeTeam,
		AwayTeam:        row.AwayTeam,
		FixtureRef:      nullInt64ToPtr(row.FixtureRef),
		MarketType:      row.MarketType,
		MarketText:      row.MarketText,
		Status:          status,
		CreatedAt:       row.CreatedAt.UTC(),
		ExpectedKickoff: nullTimeToPtr(row.ExpectedKickoff),
	}, nil
}
