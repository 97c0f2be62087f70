// Command gzhmu drives the campus SSO, Web VPN and library seat
// reservation system from the terminal.
//
// Usage:
//
//	gzhmu login
//	gzhmu contact <username>
//	gzhmu network
//	gzhmu url encrypt <url>
//	gzhmu url decrypt <url>
//	gzhmu lib rooms
//	gzhmu lib status [name]
//	gzhmu lib reserve <seat-id> <start> <end>
//	gzhmu lib cancel <reserve-id>
//	gzhmu lib checkin <seat-id>
//	gzhmu lib finish <reserve-id>
//	gzhmu lib history
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	gzhmu "github.com/gzhmu-dev/gzhmu-go"
)

var (
	// Global flags
	verbose  bool
	username string
	password string
	webvpn   bool
	proxy    string
	timeout  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "gzhmu",
		Short:   "Unofficial client for the GMU campus services",
		Version: gzhmu.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Credentials can come from flags, the environment or a
			// .env file, in that order.
			_ = godotenv.Load()
			if username == "" {
				username = os.Getenv("GZHMU_USERNAME")
			}
			if password == "" {
				password = os.Getenv("GZHMU_PASSWORD")
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Username (or set GZHMU_USERNAME env var)")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Password (or set GZHMU_PASSWORD env var)")
	rootCmd.PersistentFlags().BoolVarP(&webvpn, "webvpn", "W", false, "Route requests through the Web VPN gateway")
	rootCmd.PersistentFlags().StringVarP(&proxy, "proxy", "X", "", "Proxy for HTTP requests (scheme://host:port)")
	rootCmd.PersistentFlags().IntVarP(&timeout, "timeout", "T", 10, "Request timeout in seconds")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newContactCmd())
	rootCmd.AddCommand(newNetworkCmd())
	rootCmd.AddCommand(newURLCmd())
	rootCmd.AddCommand(newLibCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func requireCredentials() {
	if username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "Error: credentials required. Use -u/-p or set GZHMU_USERNAME and GZHMU_PASSWORD environment variables.")
		os.Exit(1)
	}
}

func clientOptions() []gzhmu.Option {
	opts := []gzhmu.Option{
		gzhmu.WithWebVPN(webvpn),
		gzhmu.WithTimeout(time.Duration(timeout) * time.Second),
	}
	if proxy != "" {
		opts = append(opts, gzhmu.WithProxy(proxy))
	}
	if verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		opts = append(opts, gzhmu.WithLogger(logger))
	}
	return opts
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[x] Error: %v\n", err)
	os.Exit(1)
}

// login command
func newLoginCmd() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in the SSO server and authorize a service",
		Run: func(cmd *cobra.Command, args []string) {
			requireCredentials()

			client, err := gzhmu.New(username, password, clientOptions()...)
			if err != nil {
				fatal(err)
			}
			defer client.Close()

			location, err := client.Login(context.Background(), service)
			if err != nil {
				fatal(err)
			}

			fmt.Println("[+] Login succeeded!")
			fmt.Printf("    Service URL: %s\n", location)
			if ticket := client.Ticket(); ticket != "" {
				fmt.Printf("    Ticket: %s\n", ticket)
			}
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", "", "Service URL to authorize (default: the portal)")

	return cmd
}

// contact command
func newContactCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "contact <username>",
		Short: "Look up the masked contact details of a user",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			contact, err := gzhmu.GetContact(context.Background(), args[0], webvpn, clientOptions()...)
			if err != nil {
				fatal(err)
			}

			if outputJSON {
				printJSON(map[string]interface{}{
					"username": args[0],
					"phone":    contact.Phone,
					"email":    contact.Email,
				})
				return
			}
			fmt.Printf("    Phone: %s\n", contact.Phone)
			fmt.Printf("    Email: %s\n", contact.Email)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output result as JSON")

	return cmd
}

// network command
func newNetworkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Check whether this machine is on the campus network",
		Run: func(cmd *cobra.Command, args []string) {
			onCampus, err := gzhmu.IsOnCampusNetwork(context.Background(), clientOptions()...)
			if err != nil {
				fatal(err)
			}
			if onCampus {
				fmt.Println("[+] On campus network")
			} else {
				fmt.Println("[-] Not on campus network, use --webvpn")
			}
		},
	}
}

// url command group
func newURLCmd() *cobra.Command {
	urlCmd := &cobra.Command{
		Use:   "url",
		Short: "Convert between intranet and Web VPN URLs",
	}

	urlCmd.AddCommand(&cobra.Command{
		Use:   "encrypt <url>",
		Short: "Convert an intranet URL to a Web VPN URL",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			encrypted, err := gzhmu.EncryptURL(args[0])
			if err != nil {
				fatal(err)
			}
			fmt.Println(encrypted)
		},
	})

	urlCmd.AddCommand(&cobra.Command{
		Use:   "decrypt <url>",
		Short: "Convert a Web VPN URL back to an intranet URL",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			decrypted, ok := gzhmu.DecryptURL(args[0])
			if !ok {
				fmt.Fprintln(os.Stderr, "[x] Error: not a Web VPN URL")
				os.Exit(1)
			}
			fmt.Println(decrypted)
		},
	})

	return urlCmd
}

func libLogin() *gzhmu.LibraryClient {
	requireCredentials()

	client, err := gzhmu.NewLibraryClient(username, password, clientOptions()...)
	if err != nil {
		fatal(err)
	}
	if _, err := client.Login(context.Background()); err != nil {
		fatal(err)
	}
	return client
}

// lib command group
func newLibCmd() *cobra.Command {
	libCmd := &cobra.Command{
		Use:   "lib",
		Short: "Query and reserve library seats",
	}

	libCmd.AddCommand(newLibRoomsCmd())
	libCmd.AddCommand(newLibStatusCmd())
	libCmd.AddCommand(newLibReserveCmd())
	libCmd.AddCommand(newLibCancelCmd())
	libCmd.AddCommand(newLibCheckinCmd())
	libCmd.AddCommand(newLibFinishCmd())
	libCmd.AddCommand(newLibHistoryCmd())

	return libCmd
}

func newLibRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List the rooms of both campus libraries",
		Run: func(cmd *cobra.Command, args []string) {
			client := libLogin()
			defer client.Close()

			libraries, err := client.Libraries(context.Background())
			if err != nil {
				fatal(err)
			}
			for _, library := range libraries {
				fmt.Printf("%s (%d)\n", library.Name, library.ID)
				for _, room := range library.Rooms {
					fmt.Printf("    %s (%d), %d seats\n", room.RoomName, room.RoomID, len(room.Seats))
				}
			}
		},
	}
}

func newLibStatusCmd() *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the realtime status of seats",
		Run: func(cmd *cobra.Command, args []string) {
			client := libLogin()
			defer client.Close()
			ctx := context.Background()

			var target gzhmu.Target
			if room != "" {
				rooms, err := client.RoomsByName(ctx, room)
				if err != nil {
					fatal(err)
				}
				if len(rooms) == 0 {
					fmt.Fprintf(os.Stderr, "[x] Error: no room matches %q\n", room)
					os.Exit(1)
				}
				target = rooms[0]
			}

			infos, err := client.SeatInfos(ctx, target, time.Time{}, time.Time{}, time.Time{})
			if err != nil {
				fatal(err)
			}
			for _, info := range infos {
				state := "closed"
				if info.Open {
					state = "open"
				}
				fmt.Printf("%s\t%s\t%d min free\n", info.Seat.Name, state, info.FreeTime)
				for _, rec := range info.Records {
					fmt.Printf("    %s  %s - %s\n", rec.Owner, rec.Start.Format("15:04"), rec.End.Format("15:04"))
				}
			}
		},
	}

	cmd.Flags().StringVarP(&room, "room", "r", "", "Restrict to rooms matching this name")

	return cmd
}

func newLibReserveCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "reserve <seat-id> <start> <end>",
		Short: "Reserve a seat (times as HH:MM)",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			client := libLogin()
			defer client.Close()
			ctx := context.Background()

			seatID, err := strconv.Atoi(args[0])
			if err != nil {
				fatal(err)
			}
			start, err := time.Parse("15:04", args[1])
			if err != nil {
				fatal(err)
			}
			end, err := time.Parse("15:04", args[2])
			if err != nil {
				fatal(err)
			}
			day := time.Now()
			if date != "" {
				day, err = time.Parse("2006-01-02", date)
				if err != nil {
					fatal(err)
				}
			}

			seat, err := client.SeatByID(ctx, seatID)
			if err != nil {
				fatal(err)
			}
			if err := client.Reserve(ctx, seat, day, start, end); err != nil {
				fatal(err)
			}
			fmt.Printf("[+] Reserved %s from %s to %s\n", seat.Name, args[1], args[2])
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "Date to reserve (YYYY-MM-DD, default today)")

	return cmd
}

func newLibCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <reserve-id>",
		Short: "Cancel a reservation before it starts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := libLogin()
			defer client.Close()

			reserveID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fatal(err)
			}
			ok, err := client.Cancel(context.Background(), &gzhmu.ReservationRecord{ReserveID: reserveID})
			if err != nil {
				fatal(err)
			}
			if ok {
				fmt.Println("[+] Reservation cancelled")
			} else {
				fmt.Println("[-] Reservation not found")
			}
		},
	}
}

func newLibCheckinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkin <seat-id>",
		Short: "Check in a reserved seat",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := libLogin()
			defer client.Close()
			ctx := context.Background()

			seatID, err := strconv.Atoi(args[0])
			if err != nil {
				fatal(err)
			}
			seat, err := client.SeatByID(ctx, seatID)
			if err != nil {
				fatal(err)
			}
			ok, err := client.CheckIn(ctx, &gzhmu.ReservationRecord{Seat: seat})
			if err != nil {
				fatal(err)
			}
			if ok {
				fmt.Println("[+] Checked in")
			} else {
				fmt.Println("[-] Check in failed or already checked in")
			}
		},
	}
}

func newLibFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish <reserve-id>",
		Short: "Finish a running reservation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := libLogin()
			defer client.Close()
			ctx := context.Background()

			reserveID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fatal(err)
			}
			records, err := client.ReserveHistory(ctx, true)
			if err != nil {
				fatal(err)
			}
			for _, record := range records {
				if record.ReserveID != reserveID {
					continue
				}
				ok, err := client.Finish(ctx, record)
				if err != nil {
					fatal(err)
				}
				if ok {
					fmt.Println("[+] Reservation finished")
				} else {
					fmt.Println("[-] Reservation is not running")
				}
				return
			}
			fmt.Fprintf(os.Stderr, "[x] Error: no pending reservation with id %d\n", reserveID)
			os.Exit(1)
		},
	}
}

func newLibHistoryCmd() *cobra.Command {
	var finished bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the reservation history of the current user",
		Run: func(cmd *cobra.Command, args []string) {
			client := libLogin()
			defer client.Close()

			records, err := client.ReserveHistory(context.Background(), !finished)
			if err != nil {
				fatal(err)
			}
			if len(records) == 0 {
				fmt.Println("[-] No records")
				return
			}
			for _, rec := range records {
				state := "pending"
				switch {
				case rec.Context == gzhmu.RecordPrivateFinished && rec.Defaulted:
					state = "defaulted"
				case rec.Context == gzhmu.RecordPrivateFinished:
					state = "finished"
				case rec.Validated:
					state = "running"
				}
				fmt.Printf("%d\t%s\t%s\t%s - %s\t%s\n",
					rec.ReserveID, rec.Seat.Name, state,
					rec.Start.Format("2006-01-02 15:04"), rec.End.Format("15:04"),
					rec.ReservedAt.Format("2006-01-02 15:04"))
			}
		},
	}

	cmd.Flags().BoolVar(&finished, "finished", false, "Show finished records instead of pending ones")

	return cmd
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
