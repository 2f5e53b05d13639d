package cmd

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traysim/traysim/sim/mes"
)

var stubListen string

// mesStubCmd serves a stand-in MES that executes every tray once and routes
// it between stations 1 and 2
var mesStubCmd = &cobra.Command{
	Use:   "mes-stub",
	Short: "Run a stub MES answering action and routing queries",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ln, err := net.Listen("tcp", stubListen)
		if err != nil {
			logrus.Fatalf("listen %s: %v", stubListen, err)
		}
		logrus.Infof("mes-stub: listening on %s", ln.Addr())
		if err := (&mes.StubServer{}).Serve(ctx, ln); err != nil {
			logrus.Fatalf("mes-stub: %v", err)
		}
	},
}

func init() {
	mesStubCmd.Flags().StringVar(&stubListen, "listen", "127.0.0.1:6789", "Address to listen on")
	rootCmd.AddCommand(mesStubCmd)
}
