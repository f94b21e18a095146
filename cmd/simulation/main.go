package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solwatch/trigger-api/internal/aggregator"
	"github.com/solwatch/trigger-api/internal/config"
	"github.com/solwatch/trigger-api/internal/database"
	"github.com/solwatch/trigger-api/internal/executor"
	"github.com/solwatch/trigger-api/internal/market"
	"github.com/solwatch/trigger-api/internal/monitor"
	"github.com/solwatch/trigger-api/internal/notify"
	"github.com/solwatch/trigger-api/internal/orders"
	"github.com/solwatch/trigger-api/internal/types"
)

const (
	minOrders     = 15
	maxOrders     = 60
	tickInterval  = 500 * time.Millisecond
	runDuration   = 20 * time.Second
	startingPrice = 100.0
	priceDrift    = 0.02
)

var (
	tokens  = []string{"BONK", "WIF", "JUP", "PYTH", "RAY"}
	actions = []string{"buy", "sell", "notify"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// tokenAddress derives a deterministic fake mint address for a symbol.
func tokenAddress(symbol string) string {
	return fmt.Sprintf("SIM%sMint1111111111111111111111111111", symbol)
}

// randomCondition builds a condition that has a realistic chance of firing
// while prices random-walk around the starting price.
func randomCondition(currentPrice float64) orders.ConditionRequest {
	switch rand.Intn(4) {
	case 0:
		// Price dips a little below where it is now
		return orders.ConditionRequest{
			Type:    "price",
			Trigger: "below",
			Price:   currentPrice * (1 - rand.Float64()*0.05),
		}
	case 1:
		// Price rallies a little above where it is now
		return orders.ConditionRequest{
			Type:    "price",
			Trigger: "above",
			Price:   currentPrice * (1 + rand.Float64()*0.05),
		}
	case 2:
		// Window that is already open and closes after the run
		return orders.ConditionRequest{
			Type:      "time",
			StartTime: time.Now().UTC().Add(-time.Minute).Format(time.RFC3339),
			EndTime:   time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		}
	default:
		// Volume above a threshold the mock provider usually clears
		return orders.ConditionRequest{
			Type:       "market",
			Metric:     "volume",
			Comparison: "above",
			Value:      currentPrice * 500_000,
		}
	}
}

// seedOrders creates a randomized book of conditional orders, including a few
// that are born about to expire.
func seedOrders(service *orders.Service, target int) int {
	created := 0
	for i := 0; i < target; i++ {
		symbol := tokens[rand.Intn(len(tokens))]
		action := actions[rand.Intn(len(actions))]

		conditions := []orders.ConditionRequest{randomCondition(startingPrice)}
		logic := "AND"
		if rand.Float64() < 0.3 {
			conditions = append(conditions, randomCondition(startingPrice))
			if rand.Float64() < 0.5 {
				logic = "OR"
			}
		}

		req := &orders.CreateOrderRequest{
			WalletAddress: fmt.Sprintf("SimWallet%d1111111111111111111111111", i%5),
			TokenAddress:  tokenAddress(symbol),
			TokenSymbol:   symbol,
			Action:        action,
			Amount:        float64(rand.Intn(100) + 1),
			Logic:         logic,
			Conditions:    conditions,
		}

		// A slice of the book expires almost immediately to exercise the
		// expiry sweep
		if rand.Float64() < 0.15 {
			req.ExpiresAt = time.Now().UTC().Add(2 * time.Second).Format(time.RFC3339)
		}

		order, err := service.CreateOrder(fmt.Sprintf("sim-client-%d", i%5), req)
		if err != nil {
			log.Error().Err(err).Str("token", symbol).Msg("Failed to create order")
			continue
		}
		created++
		log.Info().
			Str("order_id", order.OrderID).
			Str("token", symbol).
			Str("action", action).
			Str("logic", logic).
			Int("conditions", len(conditions)).
			Msg("Order created")
	}
	return created
}

// main runs the conditional order engine simulation: a randomized order book,
// a mock market feed that random-walks prices, a mock swap aggregator and a
// fast-ticking monitor, followed by an outcome summary.
func main() {
	cfg := config.MonitorConfig{
		TickInterval: tickInterval,
		WorkerLimit:  8,
		ClaimLease:   30 * time.Second,
	}

	// In-memory database so each run starts clean
	db, err := database.NewDatabase("file:simulation?mode=memory&cache=shared")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	orderService := orders.NewService(db)

	prices := make(map[string]float64, len(tokens))
	for _, symbol := range tokens {
		prices[tokenAddress(symbol)] = startingPrice
	}
	provider := market.NewMockProvider(prices, priceDrift)

	agg := aggregator.NewMock()
	eventsDB := notify.NewDatabase(db)
	sink := notify.MultiSink{notify.LogSink{}, notify.NewStoreSink(eventsDB)}

	aggCfg := config.AggregatorConfig{
		BaseMint:        "So11111111111111111111111111111111111111112",
		QuoteTimeout:    5 * time.Second,
		BuildTimeout:    5 * time.Second,
		SimulateTimeout: 5 * time.Second,
		SendTimeout:     5 * time.Second,
	}
	pipeline := executor.New(agg, orderService.DB(), aggCfg)

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")
	created := seedOrders(orderService, targetOrders)

	start := time.Now()
	engine := monitor.New(cfg, orderService.DB(), provider, pipeline, sink)
	engine.Start()
	time.Sleep(runDuration)
	engine.Stop()
	duration := time.Since(start)

	printSummary(orderService, eventsDB, agg, created, duration)
}

// printSummary reports how the order book resolved.
func printSummary(service *orders.Service, eventsDB *notify.Database, agg *aggregator.Mock, created int, duration time.Duration) {
	byStatus := make(map[types.Status]int)
	byToken := make(map[string]int)
	var totalValue float64

	for i := 0; i < 5; i++ {
		owned, err := service.ListOrders(fmt.Sprintf("sim-client-%d", i), "")
		if err != nil {
			log.Error().Err(err).Msg("Failed to list orders for summary")
			continue
		}
		for _, order := range owned {
			byStatus[order.Status]++
			if order.Status == types.StatusExecuted {
				byToken[order.TokenSymbol]++
				totalValue += order.ExecutionPrice * order.Amount
			}
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 ORDER ENGINE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Order Outcomes
-----------------
Created:          %d
Executed:         %d
Expired:          %d
Errored:          %d
Still Pending:    %d
Transactions:     %d
Executed Value:   $%.2f
Duration:         %v

📈 Executions by Token
----------------------
`, created,
		byStatus[types.StatusExecuted],
		byStatus[types.StatusExpired],
		byStatus[types.StatusError],
		byStatus[types.StatusPending],
		agg.SendCount(),
		totalValue,
		duration.Round(time.Millisecond))

	// Simple ASCII bar chart per token
	maxCount := 0
	for _, count := range byToken {
		if count > maxCount {
			maxCount = count
		}
	}
	for _, symbol := range tokens {
		count := byToken[symbol]
		barLength := 0
		if maxCount > 0 {
			barLength = int(float64(count) / float64(maxCount) * 20)
		}
		fmt.Printf("%-6s: %s (%d)\n", symbol, strings.Repeat("█", barLength), count)
	}

	fmt.Println("\n📣 Recent Events")
	fmt.Println("----------------")
	recent, err := eventsDB.RecentEvents(10)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load recent events")
	}
	for _, event := range recent {
		fmt.Printf("%-16s %s\n", event.Type, event.Message)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("created", created).
		Int("executed", byStatus[types.StatusExecuted]).
		Int("expired", byStatus[types.StatusExpired]).
		Dur("duration", duration).
		Msg("Simulation completed")
}
