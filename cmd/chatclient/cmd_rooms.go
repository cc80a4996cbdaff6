package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/thereayou/taskchat/internal/chat"
)

var (
	roomPrivate bool
	roomMembers []string
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms you belong to",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, client, err := openSession()
		if err != nil {
			return err
		}
		rooms, err := chat.NewDirectory(session, client).ListRooms(cmd.Context())
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no rooms yet"))
			return nil
		}
		for _, r := range rooms {
			fmt.Fprintln(cmd.OutOrStdout(), renderRoom(r, session.User().ID))
		}
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List people you can add to a room",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, client, err := openSession()
		if err != nil {
			return err
		}
		users, err := chat.NewDirectory(session, client).Users(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s %s\n", dimStyle.Render(u.ID.String()), u.Name, dimStyle.Render(u.Email))
		}
		return nil
	},
}

var createRoomCmd = &cobra.Command{
	Use:   "create-room NAME",
	Short: "Create a room with at least one other member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, client, err := openSession()
		if err != nil {
			return err
		}
		dir := chat.NewDirectory(session, client)

		ids, err := resolveUsers(cmd, dir, roomMembers)
		if err != nil {
			return err
		}
		room, err := dir.CreateRoom(cmd.Context(), args[0], roomPrivate, ids)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderRoom(*room, session.User().ID))
		return nil
	},
}

var addMemberCmd = &cobra.Command{
	Use:   "add-member ROOM USER",
	Short: "Add someone to a room you own",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, client, err := openSession()
		if err != nil {
			return err
		}
		dir := chat.NewDirectory(session, client)
		room, err := findRoom(cmd.Context(), dir, args[0])
		if err != nil {
			return err
		}
		ids, err := resolveUsers(cmd, dir, args[1:])
		if err != nil {
			return err
		}
		updated, err := dir.AddMember(cmd.Context(), room.ID, ids[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderRoom(*updated, session.User().ID))
		return nil
	},
}

var removeMemberCmd = &cobra.Command{
	Use:   "remove-member ROOM USER",
	Short: "Remove someone from a room you own",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, client, err := openSession()
		if err != nil {
			return err
		}
		dir := chat.NewDirectory(session, client)
		room, err := findRoom(cmd.Context(), dir, args[0])
		if err != nil {
			return err
		}
		ids, err := resolveUsers(cmd, dir, args[1:])
		if err != nil {
			return err
		}
		if err := dir.RemoveMember(cmd.Context(), room.ID, ids[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "removed")
		return nil
	},
}

func init() {
	createRoomCmd.Flags().BoolVar(&roomPrivate, "private", false, "hide the room from discovery")
	createRoomCmd.Flags().StringSliceVarP(&roomMembers, "member", "m", nil, "member id, name or email (repeatable)")

	rootCmd.AddCommand(roomsCmd, usersCmd, createRoomCmd, addMemberCmd, removeMemberCmd)
}

// resolveUsers maps ids, names or emails to user ids. Names are looked up
// only when something is not already an id.
func resolveUsers(cmd *cobra.Command, dir *chat.Directory, refs []string) ([]uuid.UUID, error) {
	var (
		ids   []uuid.UUID
		users []chat.User
	)
	for _, ref := range refs {
		if id, err := uuid.Parse(ref); err == nil {
			ids = append(ids, id)
			continue
		}
		if users == nil {
			var err error
			if users, err = dir.Users(cmd.Context()); err != nil {
				return nil, err
			}
		}
		id, ok := matchUser(users, ref)
		if !ok {
			return nil, fmt.Errorf("unknown user %q", ref)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func matchUser(users []chat.User, ref string) (uuid.UUID, bool) {
	for _, u := range users {
		if strings.EqualFold(u.Email, ref) || strings.EqualFold(u.Name, ref) {
			return u.ID, true
		}
	}
	return uuid.Nil, false
}
