// Command uacpprobe is a diagnostic client: it drives Hello/Acknowledge
// plus a None-security OpenSecureChannel handshake against an OPC UA
// endpoint and prints the negotiated sizes and issued token.
//
// It is not a service-layer CLI (spec.md keeps application entry points
// external); it exists only to exercise pkg/uacp and pkg/securechannel
// end to end against a live listener the way dfsctl's "status" command
// exercises a live dittofs server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
	"github.com/opcuacore/opcuacore/pkg/uacp"
)

var (
	flagAddr        string
	flagEndpointURL string
	flagTimeout     time.Duration
	flagPolicies    []string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "uacpprobe:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uacpprobe",
		Short: "Probe an OPC UA endpoint's UACP handshake and OpenSecureChannel response",
		Long: `uacpprobe connects to a UACP listener, completes Hello/Acknowledge, opens a
secure channel under SecurityMode=None, and reports what the endpoint
negotiated.

Examples:
  # Probe a local endpoint
  uacpprobe --addr localhost:4840 --endpoint-url opc.tcp://localhost:4840/

  # Probe with a choice of advertised policies
  uacpprobe --addr localhost:4840 --endpoint-url opc.tcp://localhost:4840/ \
    --policy http://opcfoundation.org/UA/SecurityPolicy#None`,
		RunE: runProbe,
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "localhost:4840", "host:port to dial")
	cmd.Flags().StringVar(&flagEndpointURL, "endpoint-url", "opc.tcp://localhost:4840/", "endpoint URL advertised in the Hello")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "handshake deadline")
	cmd.Flags().StringSliceVar(&flagPolicies, "policy", []string{securechannel.PolicyNone}, "security policy URI(s) this probe may request; prompts when more than one is given")

	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	runID := xid.New()

	policyURI, err := choosePolicy(flagPolicies)
	if err != nil {
		return fmt.Errorf("choose policy: %w", err)
	}
	if policyURI != securechannel.PolicyNone {
		return fmt.Errorf("uacpprobe only exercises %s end to end; a real CryptoProvider is required for %q", securechannel.PolicyNone, policyURI)
	}

	limits := uacp.LocalLimits{
		ReceiveBufferSize: 64 << 10,
		SendBufferSize:    64 << 10,
		MaxMessageSize:    4 << 20,
		MaxChunkCount:     0,
	}

	deadline := time.Now().Add(flagTimeout)
	conn, err := uacp.Dial(deadline, flagAddr, flagEndpointURL, limits)
	if err != nil {
		return fmt.Errorf("uacp dial: %w", err)
	}
	defer conn.Close()

	sc := securechannel.NewSecurityContext(nil, securechannel.SecurityModeNone, policyURI)
	ch := securechannel.NewChannel(conn, sc)

	clientCfg := securechannel.ClientConfig{
		ProtocolVersion: uacp.ProtocolVersion,
		PolicyURI:       policyURI,
		Mode:            securechannel.SecurityModeNone,
		RequestLifetime: time.Hour,
	}

	start := time.Now()
	if err := ch.ClientOpenChannel(cmd.Context(), clientCfg, nil, securechannel.TokenRequestIssue); err != nil {
		return fmt.Errorf("open secure channel: %w", err)
	}
	elapsed := time.Since(start)

	printReport(runID, conn.Config(), ch.SecurityContext().CurrentToken(), elapsed)
	return nil
}

// choosePolicy returns the single policy to probe with, prompting the
// operator when more than one was passed on the command line.
func choosePolicy(policies []string) (string, error) {
	if len(policies) == 0 {
		return securechannel.PolicyNone, nil
	}
	if len(policies) == 1 {
		return policies[0], nil
	}
	prompt := promptui.Select{
		Label: "Select a security policy to probe",
		Items: policies,
	}
	_, result, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return result, nil
}

func printReport(runID xid.ID, cfg uacp.ConnectionConfig, token securechannel.SecurityToken, handshake time.Duration) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"FIELD", "VALUE"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.Append([]string{"run_id", runID.String()})
	table.Append([]string{"receive_buffer_size", fmt.Sprintf("%d", cfg.ReceiveBufferSize)})
	table.Append([]string{"send_buffer_size", fmt.Sprintf("%d", cfg.SendBufferSize)})
	table.Append([]string{"max_message_size", fmt.Sprintf("%d", cfg.MaxMessageSize)})
	table.Append([]string{"max_chunk_count", fmt.Sprintf("%d", cfg.MaxChunkCount)})
	table.Append([]string{"channel_id", fmt.Sprintf("%d", token.ChannelID)})
	table.Append([]string{"token_id", fmt.Sprintf("%d", token.TokenID)})
	table.Append([]string{"revised_lifetime", token.RevisedLifetime.String()})
	table.Append([]string{"handshake_latency", handshake.String()})

	table.Render()
}
