package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPollInterval        = 10 * time.Second
	defaultRebroadcastInterval = 10 * time.Minute
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type Config struct {
	Network             *chaincfg.Params
	PollInterval        time.Duration
	RebroadcastInterval time.Duration
	EscrowKeySize       int
}

type Info struct {
	BuildInfo       BuildInfo
	ProtocolVersion string
	Identity        string
	Network         string
	PendingTasks    int
	LockedTxs       int
	SignedTxs       int
	StartedAt       time.Time
}

// Service is the oracle node: it listens for requests on the transport and
// runs the scheduled tasks they produce.
type Service struct {
	BuildInfo BuildInfo

	cfg          Config
	repoManager  ports.RepoManager
	bitcoinSvc   ports.BitcoinService
	transportSvc ports.TransportService

	passwordTxHandler    *PasswordTransactionHandler
	conditionedTxHandler *ConditionedTransactionHandler
	taskRunner           *TaskRunner

	startedAt  time.Time
	ctx        context.Context
	cancelFunc context.CancelFunc
}

func NewService(
	buildInfo BuildInfo,
	cfg Config,
	repoManager ports.RepoManager,
	bitcoinSvc ports.BitcoinService,
	transportSvc ports.TransportService,
	schedulerSvc ports.SchedulerService,
) (*Service, error) {
	if cfg.Network == nil {
		return nil, fmt.Errorf("missing network")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RebroadcastInterval <= 0 {
		cfg.RebroadcastInterval = defaultRebroadcastInterval
	}

	opts := make([]EscrowOption, 0, 1)
	if cfg.EscrowKeySize > 0 {
		opts = append(opts, WithEscrowKeySize(cfg.EscrowKeySize))
	}
	escrow := NewEscrowKeyIssuer(repoManager.EscrowKeys(), opts...)

	passwordTxHandler := NewPasswordTransactionHandler(
		repoManager, bitcoinSvc, transportSvc, escrow, cfg.Network, cfg.RebroadcastInterval,
	)
	conditionedTxHandler := NewConditionedTransactionHandler(
		repoManager, bitcoinSvc, transportSvc, cfg.Network, cfg.RebroadcastInterval,
	)

	taskRunner := NewTaskRunner(repoManager.Tasks(), schedulerSvc, cfg.PollInterval)
	taskRunner.Register(protocol.PasswordTransactionOperationName, passwordTxHandler)
	taskRunner.Register(protocol.ConditionedTransactionOperationName, conditionedTxHandler)

	return &Service{
		BuildInfo:            buildInfo,
		cfg:                  cfg,
		repoManager:          repoManager,
		bitcoinSvc:           bitcoinSvc,
		transportSvc:         transportSvc,
		passwordTxHandler:    passwordTxHandler,
		conditionedTxHandler: conditionedTxHandler,
		taskRunner:           taskRunner,
	}, nil
}

func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancelFunc = cancel

	messages, err := s.transportSvc.Subscribe(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to transport: %w", err)
	}
	if err := s.taskRunner.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	s.startedAt = time.Now()

	go s.listen(ctx, messages)

	if err := s.transportSvc.Broadcast(
		ctx, protocol.SubjectIdentity, protocol.IdentityMessage(),
	); err != nil {
		log.WithError(err).Warn("failed to broadcast identity")
	}

	log.Infof("oracle node %s started", s.transportSvc.Identity())
	return nil
}

func (s *Service) Stop() {
	s.taskRunner.Stop()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.transportSvc.Close()
	s.bitcoinSvc.Close()
	s.repoManager.Close()
	log.Info("oracle node stopped")
}

func (s *Service) listen(ctx context.Context, messages <-chan protocol.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				log.Warn("transport subscription closed")
				return
			}
			if err := s.HandleMessage(ctx, msg); err != nil {
				logger := log.WithError(err).WithFields(log.Fields{
					"source":  msg.Source,
					"subject": msg.Subject,
				})
				if IsMalformed(err) {
					logger.Debug("dropped malformed message")
					continue
				}
				logger.Warn("failed to handle message")
			}
		}
	}
}

// HandleMessage dispatches an inbound message to the handler of the
// operation carried by its body.
func (s *Service) HandleMessage(ctx context.Context, msg protocol.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	switch {
	case msg.Subject == protocol.SubjectPing, msg.Subject == protocol.SubjectIdentity:
		s.checkVersion(msg)
		return nil
	case msg.Subject == protocol.SubjectBounty,
		protocol.HasSubjectPrefix(msg.Subject, protocol.SubjectFinalSign):
		return nil
	}

	req, err := protocol.Decode([]byte(msg.Body))
	if err != nil {
		return err
	}

	switch req.Operation() {
	case protocol.OperationPing:
		return s.transportSvc.Send(ctx, msg.Source, protocol.SubjectPing, protocol.PingMessage())
	case protocol.OperationPasswordTransaction:
		return s.passwordTxHandler.HandleRequest(ctx, msg)
	case protocol.OperationConditionedTransaction:
		return s.conditionedTxHandler.HandleRequest(ctx, msg)
	default:
		log.WithField("source", msg.Source).Debugf("ignoring %s", req.Operation())
		return nil
	}
}

// RunTasks handles the tasks due now.
func (s *Service) RunTasks(ctx context.Context) {
	s.taskRunner.RunOnce(ctx)
}

func (s *Service) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.repoManager.Tasks().GetAll(ctx)
}

// GetLockedTransaction returns nil if pwtxid was never locked.
func (s *Service) GetLockedTransaction(
	ctx context.Context, pwtxid string,
) (*domain.LockedPasswordTransaction, error) {
	return s.repoManager.LockedTransactions().Get(ctx, pwtxid)
}

func (s *Service) Info(ctx context.Context) (*Info, error) {
	tasks, err := s.repoManager.Tasks().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	pending := 0
	for _, task := range tasks {
		if !task.Done {
			pending++
		}
	}

	locked, err := s.repoManager.LockedTransactions().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	signed, err := s.repoManager.Ledger().GetSignedTransactions(ctx)
	if err != nil {
		return nil, err
	}

	return &Info{
		BuildInfo:       s.BuildInfo,
		ProtocolVersion: protocol.Version,
		Identity:        s.transportSvc.Identity(),
		Network:         s.cfg.Network.Name,
		PendingTasks:    pending,
		LockedTxs:       len(locked),
		SignedTxs:       len(signed),
		StartedAt:       s.startedAt,
	}, nil
}

func (s *Service) checkVersion(msg protocol.Message) {
	logger := log.WithField("source", msg.Source)
	version, err := protocol.RemoteVersion([]byte(msg.Body))
	if err != nil {
		logger.WithError(err).Debug("failed to read remote version")
		return
	}
	if !protocol.CompatibleVersion(version) {
		logger.Warnf(
			"remote protocol version %s differs from local %s", version, protocol.Version,
		)
	}
}

// IsMalformed reports whether err was caused by an invalid request body.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedRequest)
}
