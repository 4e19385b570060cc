package infra

import "fmt"

const (
	// RedisNamespace базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "claimwise"
)

// Ключи кэша
const (
	// RedisKeyClaimStats — кэш тяжелого аналитического запроса статистики
	RedisKeyClaimStats = RedisNamespace + ":claims:statistics"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanReviewDecisions — трансляция решений ревьюера (HITL).
	// Канал конкретной заявки: claimwise:reviews:claim:{claim_id}
	RedisChanReviewDecisions = RedisNamespace + ":reviews"

	// RedisChanDriftAlerts — широковещательный сигнал о новом drift-отчете.
	// Подписчики перечитывают /api/monitoring/latest.
	RedisChanDriftAlerts = RedisNamespace + ":monitoring:drift-signal"
)

// ReviewDecisionChannel генератор имени канала для конкретной заявки
func ReviewDecisionChannel(claimID string) string {
	return fmt.Sprintf("%s:claim:%s", RedisChanReviewDecisions, claimID)
}
