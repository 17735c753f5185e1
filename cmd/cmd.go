package cmd

import (
	fw "github.com/named-data/ndnfw/fw/cmd"
	"github.com/named-data/ndnfw/fw/core"
	"github.com/spf13/cobra"
)

const banner = `
             _  __
  _ __   __| |/ _|_      __
 | '_ \ / _  | |_\ \ /\ / /
 | | | | (_| |  _|\ V  V /
 |_| |_|\__,_|_|   \_/\_/

Named Data Networking Firewall
`

var CmdNdnFw = &cobra.Command{
	Use:     "ndnfw",
	Short:   "Named Data Networking Firewall",
	Long:    banner[1:],
	Version: core.Version,
}

func init() {
	cobra.EnableCommandSorting = false
	CmdNdnFw.Root().CompletionOptions.HiddenDefaultCmd = true
	CmdNdnFw.PersistentFlags().BoolP("help", "h", false, "Print usage")
	CmdNdnFw.PersistentFlags().Lookup("help").Hidden = true

	CmdNdnFw.AddGroup(&cobra.Group{ID: "run", Title: "Firewall Daemon"})
	CmdNdnFw.AddCommand(fw.CmdFw)

	CmdNdnFw.AddGroup(&cobra.Group{ID: "ctl", Title: "Firewall Control"})
	CmdNdnFw.AddCommand(fw.CtlCmds()...)
}
