package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/deskfolio/config"
	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// OutputFile is where the wizard writes the generated configuration.
const OutputFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers values collected by the wizard.
type Answers struct {
	Platform          string
	Pair              string
	Timeframe         string
	Step              string
	PricePrecision    string
	QuantityPrecision string
	PollInterval      string
	ListenAddr        string
	Theme             string
}

// DefaultAnswers pre-fills the wizard with the built-in configuration.
func DefaultAnswers() Answers {
	d := config.Defaults()
	return Answers{
		Platform:          d.Platform,
		Pair:              d.Orderbook.Pair.String(),
		Timeframe:         d.Orderbook.Timeframe.String(),
		Step:              d.Orderbook.Step.String(),
		PricePrecision:    strconv.Itoa(int(d.Orderbook.PricePrecision)),
		QuantityPrecision: strconv.Itoa(int(d.Orderbook.QuantityPrecision)),
		PollInterval:      d.Orderbook.PollInterval.String(),
		ListenAddr:        d.ListenAddr,
		Theme:             string(d.Theme),
	}
}

func clearScreen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DESKFOLIO SETUP"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes OutputFile.
func RunTUI() error {
	a := DefaultAnswers()
	var confirm bool

	// step 1: welcome
	clearScreen("STEP 1: EXCHANGE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Market data source for the order book and the chart.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&a.Platform),
		),
	).Run()
	if err != nil {
		return err
	}

	// pair and aggregation
	clearScreen("STEP 2: ORDER BOOK")
	tfOptions := make([]huh.Option[string], 0, len(domain.Timeframes))
	for _, tf := range domain.Timeframes {
		tfOptions = append(tfOptions, huh.NewOption(tf.String(), tf.String()))
	}
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pair").
				Description("Must contain underscore (e.g. BTC_USDT)").
				Value(&a.Pair).
				Validate(ValidatePair),
			huh.NewSelect[string]().
				Title("Chart Timeframe").
				Options(tfOptions...).
				Value(&a.Timeframe),
			huh.NewInput().
				Title("Price Step").
				Description("Order book bucket size (e.g. 0.01, 1, 10)").
				Value(&a.Step).
				Validate(ValidateStep),
			huh.NewInput().
				Title("Price Precision").
				Description("Decimal places of prices").
				Value(&a.PricePrecision).
				Validate(ValidatePrecision),
			huh.NewInput().
				Title("Quantity Precision").
				Description("Decimal places of quantities").
				Value(&a.QuantityPrecision).
				Validate(ValidatePrecision),
		),
	).Run()
	if err != nil {
		return err
	}

	// timing
	clearScreen("STEP 3: TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Order Book Poll Interval").
				Description("Duration string (e.g. 1s, 3s, 10s)").
				Value(&a.PollInterval).
				Validate(ValidateInterval),
		),
	).Run()
	if err != nil {
		return err
	}

	// ui
	clearScreen("STEP 4: INTERFACE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("Where the dashboard UI is served (e.g. 127.0.0.1:8080)").
				Value(&a.ListenAddr).
				Validate(func(s string) error {
					if !strings.Contains(s, ":") {
						return fmt.Errorf("must be host:port")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Dark", string(domain.ThemeDark)),
					huh.NewOption("Light", string(domain.ThemeLight)),
				).
				Value(&a.Theme),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	clearScreen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nPair: %s\nTimeframe: %s\nStep: %s\nInterval: %s\nUI: http://%s (%s)\n",
		a.Platform, a.Pair, a.Timeframe, a.Step, a.PollInterval, a.ListenAddr, a.Theme,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := WriteConfig(OutputFile, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", OutputFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

// BuildConfig converts wizard answers into the yaml form of the configuration.
func BuildConfig(a Answers) (config.ConfigTmp, error) {
	for _, check := range []struct {
		name  string
		value string
		fn    func(string) error
	}{
		{"pair", a.Pair, ValidatePair},
		{"step", a.Step, ValidateStep},
		{"price precision", a.PricePrecision, ValidatePrecision},
		{"quantity precision", a.QuantityPrecision, ValidatePrecision},
		{"poll interval", a.PollInterval, ValidateInterval},
	} {
		if err := check.fn(check.value); err != nil {
			return config.ConfigTmp{}, fmt.Errorf("%s: %w", check.name, err)
		}
	}

	pollInterval, _ := time.ParseDuration(a.PollInterval)
	pricePrec, _ := strconv.Atoi(a.PricePrecision)
	qtyPrec, _ := strconv.Atoi(a.QuantityPrecision)
	pp, qp := int32(pricePrec), int32(qtyPrec)

	return config.ConfigTmp{
		Platform:   a.Platform,
		ListenAddr: a.ListenAddr,
		Theme:      a.Theme,
		Orderbook: config.OrderbookTmp{
			Pair:              strings.ToUpper(a.Pair),
			Timeframe:         a.Timeframe,
			Step:              a.Step,
			PricePrecision:    &pp,
			QuantityPrecision: &qp,
			PollInterval:      pollInterval,
		},
	}, nil
}

// WriteConfig builds the configuration and saves it as yaml to path.
func WriteConfig(path string, a Answers) error {
	cfgTmp, err := BuildConfig(a)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// ValidatePair accepts BASE_QUOTE pairs.
func ValidatePair(s string) error {
	if s == "" {
		return fmt.Errorf("pair cannot be empty")
	}
	if _, err := domain.ParsePair(s); err != nil {
		return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. BTC_USDT)")
	}
	return nil
}

// ValidateStep accepts positive decimals.
func ValidateStep(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

// ValidatePrecision accepts 0..18 decimal places.
func ValidatePrecision(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 0 || n > 18 {
		return fmt.Errorf("must be between 0 and 18")
	}
	return nil
}

// ValidateInterval accepts positive durations.
func ValidateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
