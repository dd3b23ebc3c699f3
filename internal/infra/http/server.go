package http

import (
	"context"
	"crypto/ed25519"
	"log"
	"net/http"
	"time"

	"payout/internal/config"
	"payout/internal/domain"
	"payout/internal/infra/crypto"
	"payout/internal/infra/db"
	"payout/internal/infra/ledgermem"
	"payout/internal/infra/merkle"
	"payout/internal/infra/policyopa"
	"payout/internal/infra/ratelimit"
	"payout/internal/infra/transfer"
	"payout/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	claimUC  *usecase.ClaimPayout
	commitUC *usecase.CommitBatch

	roots     usecase.RootRepository
	records   usecase.ClaimRecordRepository
	spent     usecase.SpentSetRepository
	auditRepo usecase.AuditEventRepository
	audit     *usecase.AuditEmitter

	signingPub []byte

	adminAPIKey string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Claim       *usecase.ClaimPayout
	Commit      *usecase.CommitBatch
	Roots       usecase.RootRepository
	Records     usecase.ClaimRecordRepository
	Spent       usecase.SpentSetRepository
	AuditRepo   usecase.AuditEventRepository
	Audit       *usecase.AuditEmitter
	SigningPub  []byte
	AdminAPIKey string
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		claimUC:     deps.Claim,
		commitUC:    deps.Commit,
		roots:       deps.Roots,
		records:     deps.Records,
		spent:       deps.Spent,
		auditRepo:   deps.AuditRepo,
		audit:       deps.Audit,
		signingPub:  deps.SigningPub,
		adminAPIKey: deps.AdminAPIKey,
	}
	if s.roots == nil {
		if s.claimUC != nil {
			s.roots = s.claimUC.Roots
		} else if s.commitUC != nil {
			s.roots = s.commitUC.Roots
		}
	}
	if s.spent == nil && s.claimUC != nil {
		s.spent = s.claimUC.Spent
	}
	if s.records == nil && s.commitUC != nil {
		s.records = s.commitUC.Records
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey

	cryptoSvc := &crypto.Service{}
	merkleSvc := &merkle.Service{}

	var (
		rootRepo   usecase.RootRepository
		spentRepo  usecase.SpentSetRepository
		recordRepo usecase.ClaimRecordRepository
		payoutRepo usecase.PayoutRepository
		auditRepo  usecase.AuditEventRepository
	)
	if s.store != nil && s.store.DB != nil {
		rootRepo = db.NewRootRepository(s.store.DB)
		spentRepo = db.NewSpentLeafRepository(s.store.DB)
		recordRepo = db.NewClaimRecordRepository(s.store.DB)
		payoutRepo = db.NewPayoutRepository(s.store.DB)
		auditRepo = db.NewAuditEventRepository(s.store.DB)
	} else {
		ledger := ledgermem.New()
		rootRepo = ledger
		spentRepo = ledger
		recordRepo = ledger
		payoutRepo = ledger
		auditRepo = ledger
	}
	s.roots = rootRepo
	s.records = recordRepo
	s.spent = spentRepo
	s.auditRepo = auditRepo
	s.audit = usecase.NewAuditEmitter(auditRepo, nil)

	var sign func(domain.RootHead) ([]byte, error)
	if s.cfg.RootSigningSeedHex != "" {
		priv, err := crypto.KeyFromSeedHex(s.cfg.RootSigningSeedHex)
		if err != nil {
			log.Printf("root signing disabled: %v", err)
		} else {
			s.signingPub = append([]byte(nil), priv.Public().(ed25519.PublicKey)...)
			sign = func(head domain.RootHead) ([]byte, error) {
				return cryptoSvc.SignRootHead(head, priv)
			}
		}
	}

	var policyEngine usecase.PolicyEngine
	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err != nil {
			log.Printf("policy bundle load failed, claims run unpoliced: %v", err)
		} else {
			policyEngine = engine
		}
	}

	s.commitUC = &usecase.CommitBatch{
		Roots:   rootRepo,
		Records: recordRepo,
		Crypto:  cryptoSvc,
		Merkle:  merkleSvc,
		Sign:    sign,
		Audit:   s.audit,
	}
	s.claimUC = &usecase.ClaimPayout{
		Roots:    rootRepo,
		Spent:    spentRepo,
		Payouts:  payoutRepo,
		Crypto:   cryptoSvc,
		Merkle:   merkleSvc,
		Policy:   policyEngine,
		Transfer: transfer.NewRecorder(),
		Audit:    s.audit,
	}

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/claims", s.handleClaim)
		v1.GET("/roots/current", s.handleCurrentRoot)
		v1.GET("/proofs/:leaf_hash", s.handleGetProof)
		v1.GET("/spent/:leaf_hash", s.handleGetSpent)

		v1.POST("/admin/batches", s.handleAdminCommitBatch)
		v1.POST("/admin/roots", s.handleAdminSetRoot)
		v1.GET("/audit", s.handleListAudit)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
