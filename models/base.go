package models

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-sql-driver/mysql"
	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// EventPublisher receives a message for every committed ledger write.
type EventPublisher interface {
	Publish(ctx context.Context, msg config.LedgerEventMessage) (string, error)
}

// ExportUploader stores generated export files.
type ExportUploader interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// Ledger owns every read and write against the exchange books.
type Ledger struct {
	db        *gorm.DB
	clock     utils.Clock
	locker    *redislock.Client
	sequencer ReceiptSequencer
	events    EventPublisher
	uploader  ExportUploader
	logger    *logrus.Logger
	tracer    trace.Tracer
	settings  *cache.Cache
	shared    *redis.Client
}

type Option func(*Ledger)

func WithClock(clock utils.Clock) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLocker serializes ensure+recompute per supplier/day across instances.
func WithLocker(locker *redislock.Client) Option {
	return func(l *Ledger) { l.locker = locker }
}

func WithReceiptSequencer(seq ReceiptSequencer) Option {
	return func(l *Ledger) {
		if seq != nil {
			l.sequencer = seq
		}
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.events = p }
}

func WithExportUploader(u ExportUploader) Option {
	return func(l *Ledger) { l.uploader = u }
}

// WithRedisCache shares the settings cache through Redis so an update on one
// instance is seen by the others.
func WithRedisCache(client *redis.Client) Option {
	return func(l *Ledger) { l.shared = client }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLedger(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:        db,
		clock:     utils.SystemClock(),
		sequencer: CounterSequencer{},
		logger:    config.GetLogger(),
		tracer:    otel.Tracer("github.com/maisoong/exchange_backend/models"),
		settings:  cache.New(settingsCacheTTL, 2*settingsCacheTTL),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) DB() *gorm.DB {
	return l.db
}

func (l *Ledger) Clock() utils.Clock {
	return l.clock
}

// Today is the current Bangkok business date.
func (l *Ledger) Today() time.Time {
	return utils.Today(l.clock)
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate entry")
}

// notFound maps gorm's miss to the resource-named sentinel.
func notFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NewNotFoundError(resource)
	}
	return err
}

const (
	EventActionCreate = "create"
	EventActionDelete = "delete"
	EventActionClose  = "close"
)

// publish is best-effort: the write is already committed.
func (l *Ledger) publish(ctx context.Context, supplierId int, date time.Time, refType string, refId int, action string, payload any) {
	if l.events == nil {
		return
	}
	msg := config.LedgerEventMessage{
		SupplierId:    supplierId,
		SummaryDate:   utils.FormatDate(date),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		OccurredAt:    l.clock.Now(),
	}
	if v, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		msg.CorrelationId = v
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			msg.Payload = raw
		}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := l.events.Publish(pubCtx, msg); err != nil {
		config.LogWarn(l.logger, "models", "publish", "ledger event not published", msg, err)
	}
}
