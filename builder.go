package goIdent

import (
	"errors"

	"github.com/MrEthical07/goIdent/internal/rate"
	"github.com/MrEthical07/goIdent/jwt"
	"github.com/MrEthical07/goIdent/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine] from explicit dependencies. Construction is
// allocation-only; no I/O happens until engine methods are called.
type Builder struct {
	config Config
	store  CredentialStore
	clock  Clock
	redis  redis.UniversalClient
	sink   AuditSink
	logger *zap.Logger

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. The config is cloned; later
// mutation of cfg by the caller has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithClock overrides the time source. Defaults to [SystemClock].
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithRedis supplies the optional Redis client backing the login/refresh
// throttle. Without it, Throttle config is ignored.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination for domain events. Defaults to a no-op
// sink when auditing is enabled without one.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the operational logger. Defaults to zap.NewNop().
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates configuration and dependencies and returns a ready
// [Engine]. A Builder must not be reused after a successful Build.
func (b *Builder) Build() (*Engine, error) {
	if b == nil {
		return nil, ErrEngineNotReady
	}
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("credential store is required")
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(b.config.JWT.SigningMethod),
		PrivateKey:    b.config.JWT.PrivateKey,
		PublicKey:     b.config.JWT.PublicKey,
		Issuer:        b.config.JWT.Issuer,
		Audience:      b.config.JWT.Audience,
		Leeway:        b.config.JWT.Leeway,
		Now:           clock.Now,
	})
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if b.redis != nil && b.config.Throttle.Enabled {
		limiter = rate.New(b.redis, rate.Config{
			MaxLoginAttempts:        b.config.Throttle.MaxLoginAttempts,
			LoginCooldownDuration:   b.config.Throttle.LoginCooldownDuration,
			MaxRefreshAttempts:      b.config.Throttle.MaxRefreshAttempts,
			RefreshCooldownDuration: b.config.Throttle.RefreshCooldownDuration,
		})
	}

	engine := &Engine{
		config:     b.config,
		store:      b.store,
		clock:      clock,
		hasher:     hasher,
		jwtManager: jwtManager,
		totp:       newTOTPManager(b.config.TOTP),
		lockout:    newLockoutPolicy(b.config.Lockout),
		limiter:    limiter,
		audit:      newAuditDispatcher(b.config.Audit, b.sink),
		metrics:    NewMetrics(),
		logger:     logger,
	}

	b.built = true
	return engine, nil
}
