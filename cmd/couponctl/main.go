// couponctl is a terminal storefront for one merchant: identify a customer
// by CPF, show their coupons, activate them and sell reward programs over
// PIX. One process serves one merchant slug.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pixman/coupon-flow/internal/adapters/gateway"
	"github.com/pixman/coupon-flow/internal/adapters/kvstore"
	"github.com/pixman/coupon-flow/internal/adapters/logging"
	"github.com/pixman/coupon-flow/internal/config"
	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/domain/ports"
	"github.com/pixman/coupon-flow/internal/services/flow"
	"github.com/pixman/coupon-flow/pkg/timeutil"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := buildStore(cfg.Redis, logger)

	gw := gateway.NewHTTPGateway(gateway.Config{
		GraphQLURL:     cfg.Gateway.GraphQLURL,
		PaymentURL:     cfg.Gateway.PaymentURL,
		APIKey:         cfg.Gateway.APIKey,
		Timeout:        cfg.Gateway.Timeout,
		PaymentTimeout: cfg.Gateway.PaymentTimeout,
		MaxAttempts:    cfg.Gateway.MaxAttempts,
	}, &http.Client{}, logger)

	f := flow.New(gw, store, ports.ClockFunc(timeutil.Now), logger, cfg.Merchant.Slug)
	go f.Run(ctx)
	if err := f.Start(ctx); err != nil {
		logger.Error("storefront failed to load", ports.Err(err))
		fmt.Println(flow.UserMessage(err))
		os.Exit(1)
	}

	merchant := f.Merchant()
	fmt.Printf("%s\n\n", merchant.DisplayName)

	if err := run(ctx, f); err != nil && ctx.Err() == nil {
		logger.Error("session ended with error", ports.Err(err))
		os.Exit(1)
	}
}

func buildLogger(cfg config.LoggerConfig) (*logging.ZapLogger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	zl, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logging.NewZapLogger(zl), nil
}

func buildStore(cfg config.RedisConfig, logger ports.Logger) ports.KeyValueStore {
	if cfg.Addr == "" {
		return kvstore.NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Info("using redis payment-session store", ports.String("addr", cfg.Addr))
	// server-side TTL slightly above the session TTL so abandoned entries
	// clean themselves up
	return kvstore.NewRedis(client, cfg.Prefix, domain.PaymentSessionTTL+5*time.Minute)
}

func run(ctx context.Context, f *flow.Flow) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt(f)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, arg := splitCommand(line)

		switch verb {
		case "quit", "exit":
			return nil
		case "reset":
			f.Reset()
		case "list":
			printStorefront(f)
		case "activate":
			handleActivate(ctx, f, scanner, arg)
		case "buy":
			handleBuy(ctx, f, arg)
		case "confirm":
			handleConfirm(ctx, f)
		case "close":
			f.ClosePayment()
			fmt.Println("Pagamento fechado.")
		case "help":
			printHelp()
		default:
			handleInput(ctx, f, line)
		}
	}
}

// handleInput routes bare input to the step that expects it: a CPF on the
// cpf step, an email on the email step
func handleInput(ctx context.Context, f *flow.Flow, line string) {
	switch f.Step() {
	case flow.StepCPF:
		if err := f.SubmitCPF(ctx, line); err != nil {
			fmt.Println(flow.UserMessage(err))
			return
		}
		if f.Step() == flow.StepEmail {
			fmt.Println("Criando uma nova conta para o CPF. Informe seu e-mail:")
			return
		}
		printStorefront(f)
	case flow.StepEmail:
		if err := f.SubmitEmail(ctx, line); err != nil {
			fmt.Println(flow.UserMessage(err))
			return
		}
		fmt.Println("Usuário criado com sucesso!")
		printStorefront(f)
	default:
		fmt.Println("Comando desconhecido. Digite 'help'.")
	}
}

func handleActivate(ctx context.Context, f *flow.Flow, scanner *bufio.Scanner, arg string) {
	keys := f.ProgramKeys()
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 1 || idx > len(keys) {
		fmt.Println("Informe o número do programa. Ex.: activate 1")
		return
	}

	fmt.Println("O cupom ativado vale somente até o fim do dia e não pode ser desativado. Confirmar? (s/n)")
	if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "s") {
		fmt.Println("Ativação cancelada.")
		return
	}

	if err := f.ActivateCoupon(ctx, keys[idx-1], true); err != nil {
		fmt.Println(flow.UserMessage(err))
		return
	}
	fmt.Println("Cupom ativado! Válido até o fim do dia.")
	printStorefront(f)
}

func handleBuy(ctx context.Context, f *flow.Flow, arg string) {
	rewards := f.Rewards()
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 1 || idx > len(rewards) {
		fmt.Println("Informe o número do programa. Ex.: buy 1")
		return
	}
	session, err := f.BuyReward(ctx, idx-1)
	if err != nil {
		fmt.Println(flow.UserMessage(err))
		return
	}
	fmt.Println("Pague com PIX copia-e-cola:")
	fmt.Println(session.Payload)
	fmt.Println("Depois digite 'confirm' para verificar o pagamento.")
}

func handleConfirm(ctx context.Context, f *flow.Flow) {
	confirmed, err := f.ConfirmPayment(ctx)
	if err != nil {
		fmt.Println(flow.UserMessage(err))
		return
	}
	if confirmed {
		fmt.Println("Pagamento confirmado! Seus cupons chegaram.")
		printStorefront(f)
		return
	}
	fmt.Println("Pagamento ainda não confirmado. Tente novamente em instantes.")
}

func printStorefront(f *flow.Flow) {
	if f.User() == nil {
		fmt.Println("Informe seu CPF:")
		return
	}

	rewards := f.Rewards()
	fmt.Println("\nProgramas de Recompensa:")
	for i, r := range rewards {
		fmt.Printf("  %d. %s (%s) — R$ %s\n", i+1, r.ProgramName, r.ProgramRule, domain.FormatPrice(r.Price))
		// a customer with no coupons for the program gets the purchase
		// affordance; holders manage their coupons below
		if !f.HasAnyCoupons(r.Key()) {
			fmt.Printf("     (buy %d para comprar via PIX)\n", i+1)
		}
	}

	keys := f.ProgramKeys()
	if len(keys) == 0 {
		fmt.Println("\nVocê não possui cupons ativos para este lojista.")
		return
	}

	fmt.Println("\nSeus cupons:")
	for i, key := range keys {
		fmt.Printf("  %d. %s (%s)\n", i+1, key.Name, key.Rule)
		for _, c := range f.CouponsFor(key) {
			line := fmt.Sprintf("     [%s] %s", c.Status, c.CouponCode)
			if c.IsActive() {
				line += fmt.Sprintf(" — código %s, válido até %s",
					c.VerificationCode(), c.ValidUntil().Format("15:04"))
			}
			fmt.Println(line)
		}
		if f.CanActivate(key) {
			fmt.Printf("     (activate %d para ativar um cupom)\n", i+1)
		}
	}
	fmt.Println()
}

func prompt(f *flow.Flow) {
	fmt.Printf("[%s]> ", f.Step())
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	verb := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return verb, ""
	}
	return verb, strings.TrimSpace(parts[1])
}

func printHelp() {
	fmt.Println(`Comandos:
  <cpf>         identifica o cliente (passo cpf)
  <email>       cria a conta (passo email)
  list          mostra programas e cupons
  activate <n>  ativa um cupom do programa n
  buy <n>       compra o programa de recompensa n via PIX
  confirm       verifica o pagamento aberto
  close         fecha a tela de pagamento
  reset         volta ao início para o próximo cliente
  quit          encerra`)
}
