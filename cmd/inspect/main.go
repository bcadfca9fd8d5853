// Command inspect prints the contents of a replica: its channels, their
// newest messages and pending local work. The replica must not be open in
// another process.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"chatsync/pkg/models"
	"chatsync/pkg/state"
	"chatsync/pkg/store"
)

func main() {
	root := flag.String("db", "./.chatsync", "replica directory")
	cidFlag := flag.String("cid", "", "only show this channel")
	limit := flag.Int("n", 10, "messages per channel")
	flag.Parse()

	paths := state.PathsFor(*root)
	if _, err := os.Stat(paths.Store); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: no replica at %s: %v\n", *root, err)
		os.Exit(1)
	}
	db, err := store.Open(paths.Store, store.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: open: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	var only *models.ChannelID
	if *cidFlag != "" {
		cid, err := models.ParseChannelID(*cidFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
			os.Exit(2)
		}
		only = &cid
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	err = db.Read(func(r *store.ReadSession) error {
		if cu, err := r.CurrentUser(); err == nil {
			fmt.Fprintf(w, "current user\t%s\tunread %s\n", cu.UserID, humanize.Comma(int64(cu.UnreadMessagesCount)))
		}
		chs, err := r.Channels()
		if err != nil {
			return err
		}
		for _, ch := range chs {
			if only != nil && ch.CID != *only {
				continue
			}
			if err := printChannel(w, r, ch, *limit); err != nil {
				return err
			}
		}
		return nil
	})
	w.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("on disk: %s\n", humanize.IBytes(db.Metrics().DiskSpaceUsage()))
}

func printChannel(w *tabwriter.Writer, r *store.ReadSession, ch store.ChannelRow, limit int) error {
	total, err := r.ChannelMessageIDs(ch.CID, 0)
	if err != nil {
		return err
	}
	members, err := r.Members(ch.CID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\t%s\t%s messages\t%d members\n", ch.CID, ch.Name, humanize.Comma(int64(len(total))), len(members))
	msgs, err := r.ChannelMessageModels(ch.CID, limit)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		local := ""
		if m.LocalState != nil {
			local = string(*m.LocalState)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", m.ID, m.Author.ID, humanize.Time(m.SortingKey()), local, oneLine(m.Text, 60))
	}
	return nil
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
