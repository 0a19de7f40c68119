package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/client"
	"github.com/theleywin/Collab-Nest/src/models"
	"github.com/theleywin/Collab-Nest/src/notifystore"
	"github.com/theleywin/Collab-Nest/src/requests"
)

const (
	envAPIURL = "COLLAB_API_URL"
	envToken  = "COLLAB_TOKEN"
)

type session struct {
	api       *client.Client
	accountID uint
	out       io.Writer
}

func newRootCmd() *cobra.Command {
	var apiURL, token string
	s := &session{}

	root := &cobra.Command{
		Use:           "collabctl",
		Short:         "Manage connection requests and notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = os.Getenv(envAPIURL)
			}
			if apiURL == "" {
				apiURL = "http://localhost:3000/api/v1"
			}
			if token == "" {
				token = os.Getenv(envToken)
			}
			if token == "" {
				return fmt.Errorf("no token: pass --token or set %s", envToken)
			}

			id, err := accountFromToken(token)
			if err != nil {
				return err
			}
			s.api = client.New(apiURL, client.StaticToken(token))
			s.accountID = id
			s.out = cmd.OutOrStdout()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default $"+envAPIURL+")")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token (default $"+envToken+")")

	root.AddCommand(newRequestsCmd(s), newNotificationsCmd(s))
	return root
}

// accountFromToken reads the account id claim without verifying the signature;
// the server verifies it on every call.
func accountFromToken(token string) (uint, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	raw, ok := claims["userId"].(float64)
	if !ok || raw < 1 {
		return 0, errors.New("token has no userId claim")
	}
	return uint(raw), nil
}

func newRequestsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List, send and answer connection requests",
	}

	var tab string
	var pageSize int
	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List the requests under a tab (incoming, outgoing, accepted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view := s.view(pageSize)
			if err := view.SwitchTab(cmd.Context(), models.Tab(tab)); err != nil {
				return userError(err)
			}
			for all && view.State().HasMore {
				if err := view.LoadMore(cmd.Context()); err != nil {
					return userError(err)
				}
			}
			printCards(s.out, view.Cards(), view.State().HasMore)
			return nil
		},
	}
	list.Flags().StringVar(&tab, "tab", string(models.TabIncoming), "incoming, outgoing or accepted")
	list.Flags().IntVar(&pageSize, "page-size", requests.DefaultPageSize, "rows per page")
	list.Flags().BoolVar(&all, "all", false, "follow pagination to the last page")

	var message string
	send := &cobra.Command{
		Use:   "send <userId>",
		Short: "Send a connection request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			r, err := s.api.Send(cmd.Context(), uint(id), message)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(s.out, "sent %s to %s\n", r.ID, r.Receiver.Username)
			return nil
		},
	}
	send.Flags().StringVar(&message, "message", "", "optional note")

	cmd.AddCommand(list, send,
		transitionCmd(s, "accept", "Accept a request addressed to you", (*requests.View).Accept),
		transitionCmd(s, "reject", "Reject a request addressed to you", (*requests.View).Reject),
		transitionCmd(s, "withdraw", "Withdraw a request you sent", (*requests.View).Withdraw),
	)
	return cmd
}

func transitionCmd(s *session, name, short string, run func(*requests.View, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <requestId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view := s.view(requests.DefaultPageSize)
			if err := run(view, cmd.Context(), args[0]); err != nil {
				return userError(err)
			}
			fmt.Fprintf(s.out, "%s: %s\n", name, args[0])
			return nil
		},
	}
}

func newNotificationsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Read and manage notifications",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := notifystore.New(s.api)
			if err := store.Refresh(cmd.Context()); err != nil {
				return userError(err)
			}
			printNotifications(s.out, store.Snapshot())
			return nil
		},
	}

	count := &cobra.Command{
		Use:   "count",
		Short: "Print the unread count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := notifystore.New(s.api)
			if err := store.RefreshUnreadCount(cmd.Context()); err != nil {
				return userError(err)
			}
			fmt.Fprintln(s.out, store.UnreadCount())
			return nil
		},
	}

	read := &cobra.Command{
		Use:   "read <notificationId>",
		Short: "Mark one notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.store(cmd)
			if err != nil {
				return err
			}
			if err := store.MarkAsRead(cmd.Context(), args[0]); err != nil {
				return userError(err)
			}
			fmt.Fprintf(s.out, "unread: %d\n", store.UnreadCount())
			return nil
		},
	}

	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := notifystore.New(s.api)
			if err := store.MarkAllAsRead(cmd.Context()); err != nil {
				return userError(err)
			}
			fmt.Fprintln(s.out, "unread: 0")
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <notificationId>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.store(cmd)
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return userError(err)
			}
			fmt.Fprintf(s.out, "deleted %s, unread: %d\n", args[0], store.UnreadCount())
			return nil
		},
	}

	cmd.AddCommand(list, count, read, readAll, del)
	return cmd
}

func (s *session) view(pageSize int) *requests.View {
	return requests.New(s.api, s.accountID, requests.WithPageSize(pageSize))
}

func (s *session) store(cmd *cobra.Command) (*notifystore.Store, error) {
	store := notifystore.New(s.api)
	if err := store.Refresh(cmd.Context()); err != nil {
		return nil, userError(err)
	}
	return store, nil
}

// userError reduces an API error to the message shown to the user.
func userError(err error) error {
	return errors.New(apperr.MessageOf(err))
}

func printCards(w io.Writer, cards []requests.Card, hasMore bool) {
	if len(cards) == 0 {
		fmt.Fprintln(w, "no requests")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWITH\tDIRECTION\tSTATUS\tACTIONS")
	for _, c := range cards {
		actions := "-"
		if len(c.Actions) > 0 {
			actions = ""
			for i, a := range c.Actions {
				if i > 0 {
					actions += ","
				}
				actions += string(a)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.RequestID, c.OtherParty.Username, c.Direction, c.Status, actions)
	}
	_ = tw.Flush()
	if hasMore {
		fmt.Fprintln(w, "more available, use --all")
	}
}

func printNotifications(w io.Writer, snap notifystore.Snapshot) {
	fmt.Fprintf(w, "unread: %d\n", snap.UnreadCount)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, n := range snap.Notifications {
		mark := " "
		if !n.IsRead {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, n.ID, n.Type, n.Title)
	}
	_ = tw.Flush()
}
