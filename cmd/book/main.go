// Command book walks through the booking form from a terminal: it holds a
// slot, shows the hold countdown and pays once a card token is entered.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fishcharter/internal/client"
	"fishcharter/internal/clock"
	"fishcharter/internal/countdown"
	"fishcharter/internal/models"

	"github.com/rs/zerolog"
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8080", "booking API base URL")
		svc     = flag.String("service", "saltwater", "service id")
		date    = flag.String("date", "", "trip date (YYYY-MM-DD)")
		slot    = flag.String("time", "6am", "time slot")
		people  = flag.Int("people", 1, "number of people")
		name    = flag.String("name", "", "customer name")
		email   = flag.String("email", "", "customer email")
		phone   = flag.String("phone", "", "customer phone")
		addons  = flag.String("addons", "", "comma separated addons (foodDrink,videoClips,highlightVideo,cameraman)")
		token   = flag.String("token", "", "payment token; prompted for when empty")
		verbose = flag.Bool("v", false, "log requests")
	)
	flag.Parse()

	if *date == "" || *name == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	req := models.BookingRequest{
		Name:    *name,
		Email:   *email,
		Phone:   *phone,
		Service: *svc,
		Date:    *date,
		Time:    *slot,
		People:  *people,
		Addons:  parseAddons(*addons),
	}

	if err := run(req, *baseURL, *token, &logger); err != nil {
		log.Fatalf("booking failed: %v", err)
	}
}

func run(req models.BookingRequest, baseURL, token string, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(baseURL, nil)
	pricing, err := api.Quote(ctx, req.Service, req.People, req.Addons)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	fmt.Printf("Total %s, booking fee due now %s\n", pricing.Total, pricing.BookingFee)

	expired := make(chan struct{}, 1)
	cd := countdown.New(clock.NewSystem())
	cd.OnTick(func(remaining int) {
		if remaining%60 == 0 || remaining <= 10 {
			fmt.Printf("Hold expires in %s\n", countdown.Format(remaining))
		}
	})
	flow := client.NewBookingFlow(api, cd, func(msg string) {
		fmt.Println(msg)
		expired <- struct{}{}
	}, logger)
	defer flow.Close()

	res, err := flow.Reserve(ctx, req, *pricing)
	if errors.Is(err, client.ErrSlotUnavailable) {
		fmt.Println(client.UnavailableNotice)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s (reservation %s, %s left)\n", res.Message, res.ReservationID, flow.Remaining())

	for {
		if token == "" {
			token, err = prompt(ctx, expired)
			if err != nil {
				return err
			}
			if token == "" {
				continue
			}
		}

		conf, err := flow.Confirm(ctx, token)
		if errors.Is(err, client.ErrNoReservation) {
			return nil
		}
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				fmt.Println(apiErr.Message)
				token = ""
				continue
			}
			return err
		}
		fmt.Printf("%s (booking %s, payment %s)\n", conf.Message, conf.BookingID, conf.PaymentID)
		return nil
	}
}

// prompt reads a token from stdin. An expired hold or a signal ends the wait.
func prompt(ctx context.Context, expired <-chan struct{}) (string, error) {
	fmt.Print("Payment token: ")
	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		lines <- strings.TrimSpace(line)
	}()

	select {
	case line := <-lines:
		return line, nil
	case <-expired:
		return "", errors.New("reservation expired")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func parseAddons(s string) models.Addons {
	var a models.Addons
	for _, key := range strings.Split(s, ",") {
		switch strings.TrimSpace(key) {
		case models.AddonFoodDrink:
			a.FoodDrink = true
		case models.AddonVideoClips:
			a.VideoClips = true
		case models.AddonHighlightVideo:
			a.HighlightVideo = true
		case models.AddonCameraman:
			a.Cameraman = true
		}
	}
	return a
}
