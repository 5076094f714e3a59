// internal/dex/launcher.go
package dex

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/dex/bonding"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/events"
)

// CreateParams describes a new launchpad token.
type CreateParams struct {
	Name        string
	Symbol      string
	MetadataURI string
	// InitialBuy is optional native spent in the creation tx.
	InitialBuy *big.Int
}

func (p CreateParams) validate() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("%w: name and symbol are required", ErrInvalidAmount)
	}
	if p.InitialBuy != nil && p.InitialBuy.Sign() < 0 {
		return fmt.Errorf("%w: negative initial buy", ErrInvalidAmount)
	}
	return nil
}

// Launcher creates tokens through the factory.
type Launcher struct {
	factory   *bonding.Factory
	signer    Signer
	gas       *GasPricer
	erc20     *ERC20
	publisher EventPublisher
	salt      func() ([32]byte, error)
	logger    *zap.Logger
}

func NewLauncher(factory *bonding.Factory, signer Signer, gas *GasPricer, erc20 *ERC20, publisher EventPublisher, logger *zap.Logger) *Launcher {
	return &Launcher{
		factory:   factory,
		signer:    signer,
		gas:       gas,
		erc20:     erc20,
		publisher: publisher,
		salt:      randomSalt,
		logger:    logger.Named("launcher"),
	}
}

func randomSalt() ([32]byte, error) {
	var salt [32]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Create submits createToken (or createTokenAndBuy), waits for it and
// resolves the deployed address from the salt.
func (l *Launcher) Create(ctx context.Context, params CreateParams) (*model.LaunchResult, error) {
	if !l.signer.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	creator := l.signer.Address()
	if params.InitialBuy != nil && params.InitialBuy.Sign() > 0 {
		balance, err := l.erc20.NativeBalance(ctx, creator)
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		if balance.Cmp(params.InitialBuy) < 0 {
			return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, params.InitialBuy)
		}
	}

	salt, err := l.salt()
	if err != nil {
		return nil, err
	}

	call, err := l.factory.CreateCall(params.Name, params.Symbol, params.MetadataURI, salt, params.InitialBuy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	call.From = creator
	plan := l.gas.Plan(ctx, call)

	logger := l.logger.With(zap.String("name", params.Name), zap.String("symbol", params.Symbol))
	logger.Info("Creating token")

	hash, err := l.signer.SubmitCall(ctx, call, plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	if _, err := l.signer.WaitMined(ctx, hash); err != nil {
		return nil, fmt.Errorf("%w: tx %s: %v", ErrSubmissionFailed, hash.Hex(), err)
	}

	token, err := l.factory.PredictTokenAddress(ctx, salt)
	if err != nil {
		// the token exists; only its address lookup failed
		logger.Warn("Token created but address prediction failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		return &model.LaunchResult{TxHash: hash, Salt: salt}, fmt.Errorf("predict token address: %w", err)
	}

	result := &model.LaunchResult{TxHash: hash, Token: token, Salt: salt}
	logger.Info("Token created", zap.String("tx_hash", hash.Hex()), zap.String("token", token.Hex()))

	if l.publisher != nil {
		if err := l.publisher.Publish(&events.TokenLaunchedEvent{
			BaseEvent: events.NewBase(events.TokenLaunched),
			Creator:   creator,
			Result:    *result,
		}); err != nil {
			logger.Debug("Event not published", zap.Error(err))
		}
	}
	return result, nil
}
