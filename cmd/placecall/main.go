// placecall: place an outbound call that connects to a running
// callbridge relay
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/verbilabs/callbridge/internal/config"
	"github.com/verbilabs/callbridge/internal/log"
	"github.com/verbilabs/callbridge/pkg/telephony"
)

var (
	to       = flag.String("to", "", "Destination number in E.164 form (required)")
	host     = flag.String("host", "", "Public relay host, e.g. example.ngrok.io (or PUBLIC_HOST)")
	say      = flag.String("say", "Please wait while we connect your call.", "Line spoken before the stream connects")
	logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	if *to == "" {
		fmt.Fprintln(os.Stderr, "Usage: placecall -to +15551234567 [-host example.ngrok.io]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	publicHost := *host
	if publicHost == "" {
		publicHost = config.PublicHost("")
	}
	if publicHost == "" {
		fmt.Fprintln(os.Stderr, "Error: -host or PUBLIC_HOST is required")
		os.Exit(1)
	}

	client, err := telephony.NewClient(
		config.TwilioAccountSID(),
		config.TwilioAuthToken(),
		config.TwilioPhoneNumber(),
		telephony.WithLogger(log.L()),
	)
	if err != nil {
		log.Error("client init failed", "error", err)
		os.Exit(1)
	}

	twiml := telephony.ConnectStream(*say, "wss://"+publicHost+"/ws/call")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sid, err := client.PlaceCall(ctx, *to, twiml)
	if err != nil {
		log.Error("call placement failed", "to", *to, "error", err)
		os.Exit(1)
	}

	fmt.Printf("📞 Call placed: %s → %s (sid %s)\n", config.TwilioPhoneNumber(), *to, sid)
}
