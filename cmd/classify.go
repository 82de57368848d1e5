package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/classifier"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [sender] [body]",
	Short: "Run the SMS classifier on a single message",
	Long:  `Classify one message from the command line, for debugging bank patterns without a forwarding device`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runClassify(args[0], args[1])
	},
}

var classifyThreshold float64

func runClassify(sender, body string) {
	cls := classifier.New(classifyThreshold)
	result := cls.Classify(sender, body, time.Now())

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func init() {
	classifyCmd.Flags().Float64Var(&classifyThreshold, "threshold", internal.DefaultConfidenceThreshold, "Confidence threshold for processable classifications")
}
