package main

import "github.com/tanawath/sms-payment-gateway/cmd"

func main() {
	cmd.Execute()
}
