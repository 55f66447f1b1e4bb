package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/and161185/whosfree/internal/api"
)

const localLayout = "2006-01-02 15:04"

type cli struct {
	addr  string
	stdin io.Reader
	out   io.Writer
}

func (a *cli) anon() (*client, error) { return newClient(a.addr, "") }

func (a *cli) authed() (*client, tokenFile, error) {
	tf, err := loadToken()
	if err != nil {
		return nil, tokenFile{}, err
	}
	c, err := newClient(a.addr, tf.AccessToken)
	return c, tf, err
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseWhen accepts RFC 3339 or "YYYY-MM-DD HH:MM" in local time.
func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: want RFC 3339 or %q", s, localLayout)
	}
	return t, nil
}

func splitIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func need(ok bool, msg string) error {
	if !ok {
		return fmt.Errorf("%w: %s", errUsage, msg)
	}
	return nil
}

// ---- account ----

func (a *cli) register(ctx context.Context, args []string) error {
	fs := newFlags("register")
	u := fs.String("u", "", "username")
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := need(*u != "" && *e != "" && *p != "", "need -u, -e and -p"); err != nil {
		return err
	}
	c, err := a.anon()
	if err != nil {
		return err
	}
	var resp api.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil,
		api.RegisterRequest{Username: *u, Email: *e, Password: *p}, &resp); err != nil {
		return err
	}
	fmt.Fprintln(a.out, resp.UserID)
	return nil
}

func (a *cli) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := need(*e != "" && *p != "", "need -e and -p"); err != nil {
		return err
	}
	c, err := a.anon()
	if err != nil {
		return err
	}
	var resp api.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil,
		api.LoginRequest{Email: *e, Password: *p}, &resp); err != nil {
		return err
	}
	exp := resp.ExpiresAt
	if exp.IsZero() {
		exp = tokenExpiry(resp.AccessToken, time.Now().Add(15*time.Minute))
	}
	if err := saveToken(tokenFile{AccessToken: resp.AccessToken, ExpiresAt: exp, UserID: resp.User.ID}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "ok (%s)\n", resp.User.Username)
	return nil
}

func (a *cli) whoami(ctx context.Context) error {
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var u api.User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &u); err != nil {
		return err
	}
	printJSON(a.out, u)
	return nil
}

func (a *cli) search(ctx context.Context, args []string) error {
	fs := newFlags("search")
	q := fs.String("q", "", "username fragment")
	limit := fs.Int("limit", 20, "max results")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := need(*q != "", "need -q"); err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var found []api.UserSummary
	if err := c.do(ctx, http.MethodGet, "/api/users",
		url.Values{"q": {*q}, "limit": {strconv.Itoa(*limit)}}, nil, &found); err != nil {
		return err
	}
	for _, u := range found {
		fmt.Fprintf(a.out, "%s  %s\n", u.ID, u.Username)
	}
	return nil
}

// ---- events ----

func (a *cli) events(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	switch args[0] {
	case "add":
		return a.eventAdd(ctx, args[1:])
	case "list":
		return a.eventList(ctx, args[1:])
	case "get":
		return a.eventGet(ctx, args[1:])
	case "edit":
		return a.eventEdit(ctx, args[1:])
	case "rm":
		return a.eventRemove(ctx, args[1:])
	default:
		return errUsage
	}
}

func (a *cli) eventAdd(ctx context.Context, args []string) error {
	fs := newFlags("events add")
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description")
	start := fs.String("start", "", "start time")
	end := fs.String("end", "", "end time")
	privacy := fs.String("privacy", "", "private|friends|specific_users")
	share := fs.String("share", "", "comma separated user ids")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := need(*title != "" && *start != "" && *end != "", "need -title, -start and -end"); err != nil {
		return err
	}
	st, err := parseWhen(*start)
	if err != nil {
		return err
	}
	en, err := parseWhen(*end)
	if err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var ev api.Event
	if err := c.do(ctx, http.MethodPost, "/api/events", nil, api.EventRequest{
		Title:       *title,
		Description: *desc,
		Start:       st,
		End:         en,
		Privacy:     *privacy,
		SharedWith:  splitIDs(*share),
	}, &ev); err != nil {
		return err
	}
	printJSON(a.out, ev)
	return nil
}

func (a *cli) eventList(ctx context.Context, args []string) error {
	fs := newFlags("events list")
	date := fs.String("date", "", "YYYY-MM-DD")
	from := fs.String("from", "", "range start")
	to := fs.String("to", "", "range end")
	user := fs.String("user", "", "calendar owner (default: me)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	q := url.Values{}
	switch {
	case *date != "":
		q.Set("date", *date)
	case *from != "" || *to != "":
		if err := need(*from != "" && *to != "", "need both -from and -to"); err != nil {
			return err
		}
		f, err := parseWhen(*from)
		if err != nil {
			return err
		}
		t, err := parseWhen(*to)
		if err != nil {
			return err
		}
		q.Set("from", f.Format(time.RFC3339))
		q.Set("to", t.Format(time.RFC3339))
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	path := "/api/events"
	if *user != "" {
		path = "/api/users/" + url.PathEscape(*user) + "/events"
	}
	var evs []api.Event
	if err := c.do(ctx, http.MethodGet, path, q, nil, &evs); err != nil {
		return err
	}
	for _, e := range evs {
		fmt.Fprintf(a.out, "%-6d %s - %s  %-14s %s\n", e.ID,
			e.Start.Local().Format(localLayout), e.End.Local().Format("15:04"), e.Privacy, e.Title)
	}
	return nil
}

// idFlag parses a required positive -id.
func idFlag(fs *flag.FlagSet, args []string) (int64, error) {
	id := fs.Int64("id", 0, "event id")
	if err := fs.Parse(args); err != nil {
		return 0, errUsage
	}
	if err := need(*id > 0, "need -id"); err != nil {
		return 0, err
	}
	return *id, nil
}

func (a *cli) eventGet(ctx context.Context, args []string) error {
	id, err := idFlag(newFlags("events get"), args)
	if err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var ev api.Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+strconv.FormatInt(id, 10), nil, nil, &ev); err != nil {
		return err
	}
	printJSON(a.out, ev)
	return nil
}

func (a *cli) eventEdit(ctx context.Context, args []string) error {
	fs := newFlags("events edit")
	id := fs.Int64("id", 0, "event id")
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description")
	start := fs.String("start", "", "start time")
	end := fs.String("end", "", "end time")
	privacy := fs.String("privacy", "", "private|friends|specific_users")
	share := fs.String("share", "", "comma separated user ids ('-' clears)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := need(*id > 0, "need -id"); err != nil {
		return err
	}

	var patch api.EventPatchRequest
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["title"] {
		patch.Title = title
	}
	if set["desc"] {
		patch.Description = desc
	}
	if set["privacy"] {
		patch.Privacy = privacy
	}
	if set["start"] {
		t, err := parseWhen(*start)
		if err != nil {
			return err
		}
		patch.Start = &t
	}
	if set["end"] {
		t, err := parseWhen(*end)
		if err != nil {
			return err
		}
		patch.End = &t
	}
	if set["share"] {
		ids := []string{}
		if *share != "-" {
			ids = splitIDs(*share)
		}
		patch.SharedWith = &ids
	}

	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var ev api.Event
	if err := c.do(ctx, http.MethodPatch, "/api/events/"+strconv.FormatInt(*id, 10), nil, patch, &ev); err != nil {
		return err
	}
	printJSON(a.out, ev)
	return nil
}

func (a *cli) eventRemove(ctx context.Context, args []string) error {
	id, err := idFlag(newFlags("events rm"), args)
	if err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodDelete, "/api/events/"+strconv.FormatInt(id, 10), nil, nil, nil); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "deleted")
	return nil
}

func (a *cli) heatmap(ctx context.Context, args []string) error {
	fs := newFlags("heatmap")
	user := fs.String("user", "", "calendar owner (default: me)")
	month := fs.String("month", "", "YYYY-MM (default: current)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	c, tf, err := a.authed()
	if err != nil {
		return err
	}
	owner := *user
	if owner == "" {
		owner = tf.UserID
	}
	if err := need(owner != "", "need -user (token has no user id, log in again)"); err != nil {
		return err
	}
	q := url.Values{}
	if *month != "" {
		q.Set("month", *month)
	}
	var hm api.Heatmap
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(owner)+"/heatmap", q, nil, &hm); err != nil {
		return err
	}
	printJSON(a.out, hm)
	return nil
}

// ---- friends ----

func (a *cli) friends(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "request":
		fs := newFlags("friends request")
		user := fs.String("user", "", "user id")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if err := need(*user != "", "need -user"); err != nil {
			return err
		}
		var f api.Friendship
		if err := c.do(ctx, http.MethodPost, "/api/friends/requests", nil, api.FriendRequestCreate{UserID: *user}, &f); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "request %d %s\n", f.ID, f.Status)
		return nil
	case "accept", "decline":
		id, err := idFlag(newFlags("friends "+sub), rest)
		if err != nil {
			return err
		}
		path := "/api/friends/requests/" + strconv.FormatInt(id, 10)
		if sub == "accept" {
			var f api.Friendship
			if err := c.do(ctx, http.MethodPost, path+"/accept", nil, nil, &f); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "request %d %s\n", f.ID, f.Status)
			return nil
		}
		if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "declined")
		return nil
	case "list":
		var fs []api.UserSummary
		if err := c.do(ctx, http.MethodGet, "/api/friends", nil, nil, &fs); err != nil {
			return err
		}
		for _, f := range fs {
			fmt.Fprintf(a.out, "%s  %s\n", f.ID, f.Username)
		}
		return nil
	case "pending":
		var reqs api.FriendRequests
		if err := c.do(ctx, http.MethodGet, "/api/friends/requests", nil, nil, &reqs); err != nil {
			return err
		}
		for _, r := range reqs.Incoming {
			fmt.Fprintf(a.out, "in   %-6d from %s (%s)\n", r.ID, r.From.Username, r.From.ID)
		}
		for _, r := range reqs.Outgoing {
			fmt.Fprintf(a.out, "out  %-6d to   %s (%s)\n", r.ID, r.To.Username, r.To.ID)
		}
		return nil
	default:
		return errUsage
	}
}

// ---- messages ----

func (a *cli) send(ctx context.Context, args []string) error {
	fs := newFlags("send")
	to := fs.String("to", "", "recipient id")
	msg := fs.String("m", "", "message text")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := need(*to != "" && *msg != "", "need -to and -m"); err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var m api.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", nil, api.SendMessageRequest{RecipientID: *to, Content: *msg}, &m); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "sent %d\n", m.ID)
	return nil
}

func withFlag(name string, args []string) (string, error) {
	fs := newFlags(name)
	with := fs.String("with", "", "peer user id")
	if err := fs.Parse(args); err != nil {
		return "", errUsage
	}
	if err := need(*with != "", "need -with"); err != nil {
		return "", err
	}
	return *with, nil
}

func printMessage(w io.Writer, m api.Message, me string) {
	who := "them"
	if m.SenderID == me {
		who = "me"
	}
	fmt.Fprintf(w, "[%s] %-4s %s\n", m.SentAt.Local().Format(localLayout), who, m.Content)
}

func (a *cli) history(ctx context.Context, args []string) error {
	peer, err := withFlag("history", args)
	if err != nil {
		return err
	}
	c, tf, err := a.authed()
	if err != nil {
		return err
	}
	var ms []api.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peer), nil, nil, &ms); err != nil {
		return err
	}
	for _, m := range ms {
		printMessage(a.out, m, tf.UserID)
	}
	return nil
}

func (a *cli) markRead(ctx context.Context, args []string) error {
	peer, err := withFlag("read", args)
	if err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var r api.MarkReadResponse
	if err := c.do(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(peer)+"/read", nil, nil, &r); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "marked %d\n", r.Updated)
	return nil
}

func (a *cli) unread(ctx context.Context) error {
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	var r api.UnreadResponse
	if err := c.do(ctx, http.MethodGet, "/api/messages/unread", nil, nil, &r); err != nil {
		return err
	}
	fmt.Fprintln(a.out, r.Count)
	return nil
}

// chat joins the live room with a peer: stdin lines are sent, room frames are printed.
func (a *cli) chat(ctx context.Context, args []string) error {
	peer, err := withFlag("chat", args)
	if err != nil {
		return err
	}
	c, tf, err := a.authed()
	if err != nil {
		return err
	}
	conn, err := c.dialChat(ctx, peer)
	if err != nil {
		return err
	}
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() {
		for {
			var f api.Frame
			if err := conn.ReadJSON(&f); err != nil {
				readErr <- err
				return
			}
			a.printFrame(f, tf.UserID)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	bye := func() error {
		return conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	for {
		select {
		case <-ctx.Done():
			_ = bye()
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok {
				_ = bye()
				// wait for the server to close its side
				select {
				case <-readErr:
				case <-time.After(2 * time.Second):
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := conn.WriteJSON(api.Frame{Type: api.FrameSend, Content: line}); err != nil {
				return err
			}
		}
	}
}

func (a *cli) printFrame(f api.Frame, me string) {
	switch f.Type {
	case "history":
		for _, m := range f.History {
			printMessage(a.out, m, me)
		}
		fmt.Fprintln(a.out, "--- live ---")
	case "message":
		if f.Message != nil {
			printMessage(a.out, *f.Message, me)
		}
	case "joined":
		fmt.Fprintln(a.out, "* peer joined")
	case "left":
		fmt.Fprintln(a.out, "* peer left")
	case "error":
		fmt.Fprintln(a.out, "! "+f.Error)
	}
}
