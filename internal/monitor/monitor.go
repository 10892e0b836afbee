// Package monitor はフィード生成ランの進捗カウンタと健全性判定を提供する。
// カウンタはラン開始時に生成され、終了時に集計して破棄される。永続化はしない。
package monitor

import (
	"log/slog"
	"time"

	"github.com/hitoshi/feedgen/internal/metrics"
)

// batchSize はスループットログを出力する商品処理件数の間隔。
const batchSize = 100

// HealthClassification はランの健全性区分。
type HealthClassification string

const (
	// HealthHealthy は失敗のないラン。処理件数0のランも健全とみなす。
	HealthHealthy HealthClassification = "healthy"
	// HealthDegraded は失敗率10%未満のラン。
	HealthDegraded HealthClassification = "degraded"
	// HealthFailed は失敗率10%以上のラン。
	HealthFailed HealthClassification = "failed"
)

// degradedThreshold はdegradedとfailedを分ける失敗率の境界。
const degradedThreshold = 0.1

// RunSummary はラン完了時の集計結果。
type RunSummary struct {
	FeedID            string  `json:"feed_id"`
	DurationMillis    int64   `json:"duration_ms"`
	TotalProducts     int     `json:"total_products"`
	ProcessedProducts int     `json:"processed_products"`
	FailedProducts    int     `json:"failed_products"`
	ProductsPerSecond float64 `json:"products_per_second"`
	Success           bool    `json:"success"`
}

// FeedMonitor は1ランぶんのカウンタを保持する。ゴルーチン間で共有しない前提。
type FeedMonitor struct {
	feedID    string
	shopID    string
	format    string
	total     int
	processed int
	failed    int

	startTime      time.Time
	checkpointTime time.Time
	batchCount     int

	logger    *slog.Logger
	collector metrics.MetricsCollector
	now       func() time.Time
}

// NewFeedMonitor はラン開始を記録し、新しいFeedMonitorを生成する。
func NewFeedMonitor(logger *slog.Logger, collector metrics.MetricsCollector, feedID, shopID string, totalProducts int, format string) *FeedMonitor {
	m := &FeedMonitor{
		feedID:    feedID,
		shopID:    shopID,
		format:    format,
		total:     totalProducts,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
	m.startTime = m.now()
	m.checkpointTime = m.startTime

	m.logger.Info("フィード生成を開始しました",
		slog.String("feed_id", feedID),
		slog.String("shop_id", shopID),
		slog.Int("total_products", totalProducts),
		slog.String("format", format),
	)
	return m
}

// ProductProcessed は1商品の処理結果を記録する。
// 失敗時は商品IDとエラーを警告ログに残す。batchSize件ごとにスループットを出力する。
func (m *FeedMonitor) ProductProcessed(productID string, success bool, err error) {
	m.processed++
	if !success {
		m.failed++
		attrs := []any{
			slog.String("feed_id", m.feedID),
			slog.String("product_id", productID),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		m.logger.Warn("商品の処理に失敗しました", attrs...)
	}

	m.batchCount++
	if m.batchCount >= batchSize {
		m.logBatchProgress()
		m.batchCount = 0
	}
}

// logBatchProgress は直近バッチのスループットと全体進捗を出力する。
func (m *FeedMonitor) logBatchProgress() {
	current := m.now()
	batchDuration := current.Sub(m.checkpointTime)

	perSecond := 0.0
	if batchDuration > 0 {
		perSecond = float64(batchSize) / batchDuration.Seconds()
	}
	progress := 0.0
	if m.total > 0 {
		progress = float64(m.processed) / float64(m.total) * 100
	}

	m.logger.Info("バッチ処理が完了しました",
		slog.String("feed_id", m.feedID),
		slog.Int("batch_size", batchSize),
		slog.Duration("duration", batchDuration),
		slog.Float64("products_per_second", perSecond),
		slog.Float64("progress_percent", progress),
		slog.Int("failed_products", m.failed),
	)

	m.checkpointTime = current
}

// UpdateProgress は外部から通知された進捗率を[0,100]に丸めてログに出力する。
func (m *FeedMonitor) UpdateProgress(percent float64) {
	clamped := min(100, max(0, percent))
	m.logger.Info("フィード生成の進捗",
		slog.String("feed_id", m.feedID),
		slog.Float64("progress_percent", clamped),
	)
}

// UpdateTotalProducts はカタログ取得後に確定した総商品数を反映する。
func (m *FeedMonitor) UpdateTotalProducts(total int) {
	m.total = total
	m.logger.Info("総商品数を更新しました",
		slog.String("feed_id", m.feedID),
		slog.Int("total_products", total),
	)
}

// Complete はランの集計を確定してサマリを返す。失敗0件のときsuccess=true。
func (m *FeedMonitor) Complete() RunSummary {
	duration := m.now().Sub(m.startTime)
	success := m.failed == 0

	perSecond := 0.0
	if duration > 0 {
		perSecond = float64(m.processed) / duration.Seconds()
	}

	summary := RunSummary{
		FeedID:            m.feedID,
		DurationMillis:    duration.Milliseconds(),
		TotalProducts:     m.total,
		ProcessedProducts: m.processed,
		FailedProducts:    m.failed,
		ProductsPerSecond: perSecond,
		Success:           success,
	}

	attrs := []any{
		slog.String("feed_id", m.feedID),
		slog.Duration("duration", duration),
		slog.Int("total_products", m.total),
		slog.Int("processed_products", m.processed),
		slog.Int("failed_products", m.failed),
		slog.Float64("products_per_second", perSecond),
		slog.Bool("success", success),
	}
	if success {
		m.logger.Info("フィード生成が正常に完了しました", attrs...)
	} else {
		m.logger.Warn("フィード生成がエラー付きで完了しました", attrs...)
	}

	m.collector.RecordHealth(string(m.GetFeedHealth()))
	return summary
}

// GetFeedHealth は失敗率から健全性を判定する。
// 処理件数が0のランは失敗も起きていないため healthy を返す。
func (m *FeedMonitor) GetFeedHealth() HealthClassification {
	if m.processed == 0 {
		return HealthHealthy
	}
	failureRate := float64(m.failed) / float64(m.processed)
	switch {
	case failureRate == 0:
		return HealthHealthy
	case failureRate < degradedThreshold:
		return HealthDegraded
	default:
		return HealthFailed
	}
}
