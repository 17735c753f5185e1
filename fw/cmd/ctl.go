package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/named-data/ndnfw/fw/filter"
	"github.com/named-data/ndnfw/fw/firewall"
	"github.com/spf13/cobra"
)

// CtlTool sends commands to a running firewall over its command channel.
type CtlTool struct {
	to      string
	timeout time.Duration
}

// CtlCmds returns the control subcommands.
func CtlCmds() []*cobra.Command {
	t := &CtlTool{}

	editConfig := &cobra.Command{
		Use:   "edit-config",
		Short: "Change kill-switches and report settings",
		Args:  cobra.NoArgs,
		Run:   t.execEditConfig,
	}
	editConfig.Flags().Bool("drop-interest", false, "Drop every Interest")
	editConfig.Flags().Bool("drop-data", false, "Drop every Data")
	editConfig.Flags().Bool("report", false, "Enable periodic reports")
	editConfig.Flags().String("manager", "", "Manager endpoint URI for reports")
	editConfig.Flags().Uint64("interval-ms", 0, "Report interval in milliseconds")

	addFace := &cobra.Command{
		Use:   "add-face FACE-URI",
		Short: "Add an egress face",
		Args:  cobra.ExactArgs(1),
		Run:   t.faceCmd(firewall.CmdAddFace),
	}
	delFace := &cobra.Command{
		Use:   "del-face FACE-URI",
		Short: "Remove an egress face",
		Args:  cobra.ExactArgs(1),
		Run:   t.faceCmd(firewall.CmdDelFace),
	}

	addRules := &cobra.Command{
		Use:   "add-rules",
		Short: "Add filter rules",
		Args:  cobra.NoArgs,
		Run:   t.rulesCmd(firewall.CmdAddRules),
	}
	delRules := &cobra.Command{
		Use:   "del-rules",
		Short: "Remove filter rules",
		Args:  cobra.NoArgs,
		Run:   t.rulesCmd(firewall.CmdDelRules),
	}
	for _, c := range []*cobra.Command{addRules, delRules} {
		c.Flags().String("file", "", "YAML file with a list of rules")
		c.Flags().String("prefix", "", "Name prefix of a single rule")
		c.Flags().String("kind", "any", "Packet kind: interest, data, any")
		c.Flags().String("direction", "any", "Direction: ingress, egress, any")
		c.Flags().String("face", "", "Only match packets from this face")
		c.Flags().String("action", "drop", "Action: drop, accept")
		c.Flags().String("egress", "", "Egress face URI for accepted packets")
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print faces, rules, configuration or counters",
		Args:  cobra.NoArgs,
		Run:   t.execList,
	}
	list.Flags().StringSlice("what", nil, "Sections to print: faces, rules, config, counters")

	cmds := []*cobra.Command{editConfig, addFace, delFace, addRules, delRules, list}
	for _, c := range cmds {
		c.GroupID = "ctl"
		c.Flags().StringVar(&t.to, "to", "127.0.0.1:6464", "Command channel address of the firewall")
		c.Flags().DurationVar(&t.timeout, "timeout", 2*time.Second, "Time to wait for a reply")
	}
	return cmds
}

func (t *CtlTool) execEditConfig(cmd *cobra.Command, _ []string) {
	c := firewall.Command{Command: firewall.CmdEditConfig}
	flags := cmd.Flags()

	if flags.Changed("drop-interest") {
		v, _ := flags.GetBool("drop-interest")
		c.DropInterest = &v
	}
	if flags.Changed("drop-data") {
		v, _ := flags.GetBool("drop-data")
		c.DropData = &v
	}

	report := &firewall.ReportEdit{}
	if flags.Changed("report") {
		v, _ := flags.GetBool("report")
		report.Enable = &v
	}
	if flags.Changed("manager") {
		v, _ := flags.GetString("manager")
		report.Manager = &v
	}
	if flags.Changed("interval-ms") {
		v, _ := flags.GetUint64("interval-ms")
		report.IntervalMs = &v
	}
	if report.Enable != nil || report.Manager != nil || report.IntervalMs != nil {
		c.Report = report
	}

	t.send(&c)
}

func (t *CtlTool) faceCmd(name string) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, args []string) {
		t.send(&firewall.Command{Command: name, Face: args[0]})
	}
}

func (t *CtlTool) rulesCmd(name string) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		flags := cmd.Flags()
		var rules []filter.Rule

		if file, _ := flags.GetString("file"); file != "" {
			loaded, err := filter.LoadRuleFile(file)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(9)
			}
			rules = append(rules, loaded...)
		}

		if prefix, _ := flags.GetString("prefix"); prefix != "" {
			r := filter.Rule{Prefix: prefix}
			r.Kind, _ = flags.GetString("kind")
			r.Direction, _ = flags.GetString("direction")
			r.Face, _ = flags.GetString("face")
			r.Action, _ = flags.GetString("action")
			r.Egress, _ = flags.GetString("egress")
			rules = append(rules, r)
		}

		if len(rules) == 0 {
			fmt.Fprintln(os.Stderr, "No rules given (use --file or --prefix)")
			os.Exit(9)
		}
		t.send(&firewall.Command{Command: name, Rules: rules})
	}
}

func (t *CtlTool) execList(cmd *cobra.Command, _ []string) {
	what, _ := cmd.Flags().GetStringSlice("what")
	conn := t.dial()
	defer conn.Close()

	t.write(conn, &firewall.Command{Command: firewall.CmdList, What: what})

	conn.SetReadDeadline(time.Now().Add(t.timeout))
	buf := make([]byte, 1<<16)
	n, err := conn.Read(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No reply from %s: %v\n", t.to, err)
		os.Exit(1)
	}

	reply := firewall.ListReply{}
	if err := json.Unmarshal(buf[:n], &reply); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid reply: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(reply, "", "  ")
	fmt.Println(string(out))
}

// send fires a command that has no reply.
func (t *CtlTool) send(c *firewall.Command) {
	conn := t.dial()
	defer conn.Close()
	t.write(conn, c)
}

func (t *CtlTool) dial() net.Conn {
	conn, err := net.DialTimeout("udp", t.to, t.timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to reach %s: %v\n", t.to, err)
		os.Exit(1)
	}
	return conn
}

func (t *CtlTool) write(conn net.Conn, c *firewall.Command) {
	doc, err := json.Marshal(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to encode command: %v\n", err)
		os.Exit(9)
	}
	if _, err = conn.Write(doc); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to send command: %v\n", err)
		os.Exit(1)
	}
}
