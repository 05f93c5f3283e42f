package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"chefai"
	"chefai/cookbook"
	"chefai/coordinator"
)

const helpText = `Type a message and press enter. Commands:
  /image <path>     attach an image to the next message
  /recipe <id>      attach a saved recipe to the next message
  /cook <id>        finish cooking a recipe and take its ingredients out of the pantry
  /categories       list recipe categories
  /history          print the conversation
  /quit             exit`

// session drives one terminal conversation.
type session struct {
	orch       *coordinator.Orchestrator
	recipes    *cookbook.RecipeStore
	pantry     *cookbook.PantryStore
	categories *cookbook.CategoryStore
	notifier   chefai.Notifier
	channel    string
	out        io.Writer

	image  *coordinator.Image
	recipe *cookbook.Recipe
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	for _, m := range s.orch.Messages() {
		s.printMessage(m)
	}
	fmt.Fprintln(s.out, "(/help for commands)")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := s.handle(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one input line and reports whether the session should end.
func (s *session) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(s.out, helpText)
		return false, nil
	case "/image":
		return false, s.attachImage(arg)
	case "/recipe":
		return false, s.attachRecipe(ctx, arg)
	case "/cook":
		return false, s.cook(ctx, arg)
	case "/categories":
		return false, s.listCategories(ctx)
	case "/history":
		for _, m := range s.orch.Messages() {
			s.printMessage(m)
		}
		return false, nil
	}

	if strings.HasPrefix(cmd, "/") {
		return false, fmt.Errorf("unknown command %s", cmd)
	}
	if line == "" && s.image == nil && s.recipe == nil {
		return false, nil
	}
	return false, s.send(ctx, line)
}

func (s *session) send(ctx context.Context, text string) error {
	turn := coordinator.Turn{Text: text, Image: s.image, Recipe: s.recipe}
	reply, err := s.orch.Send(ctx, turn)
	if errors.Is(err, coordinator.ErrEmptyTurn) || errors.Is(err, coordinator.ErrBusy) {
		return err
	}
	s.image, s.recipe = nil, nil
	if err != nil {
		slog.Error("Turn failed", "error", err)
	}

	s.printMessage(reply)

	if s.notifier != nil {
		if nerr := s.notifier.PostMessage(ctx, s.channel, reply.Text, cards(reply)...); nerr != nil {
			slog.Error("Failed to post reply to Slack", "error", nerr)
		}
	}
	return nil
}

func (s *session) attachImage(path string) error {
	if path == "" {
		return errors.New("usage: /image <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	s.image = &coordinator.Image{
		URI:      path,
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mime,
	}
	fmt.Fprintf(s.out, "Attached %s (%s) to your next message.\n", path, mime)
	return nil
}

func (s *session) attachRecipe(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("usage: /recipe <id>")
	}
	r, err := s.recipes.Get(ctx, id)
	if err != nil {
		return err
	}
	s.recipe = &r
	fmt.Fprintf(s.out, "Attached recipe %q to your next message.\n", r.Name)
	return nil
}

func (s *session) cook(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("usage: /cook <id>")
	}
	r, err := s.recipes.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.pantry.Subtract(ctx, r.Ingredients); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Finished cooking %q. Pantry updated.\n", r.Name)
	return nil
}

func (s *session) listCategories(ctx context.Context) error {
	names, err := s.categories.All(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		rs, err := s.recipes.ByCategory(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "  %s (%d)\n", name, len(rs))
	}
	return nil
}

func (s *session) printMessage(m coordinator.Message) {
	who := "you"
	if m.Role == coordinator.RoleAssistant {
		who = "chef"
	}
	text := m.Text
	if m.Image != nil {
		text = strings.TrimSpace(text + " [image]")
	}
	if m.Recipe != nil {
		text = strings.TrimSpace(fmt.Sprintf("%s [recipe: %s]", text, m.Recipe.Name))
	}
	fmt.Fprintf(s.out, "%s> %s\n", who, text)
	for _, c := range cards(m) {
		fmt.Fprintf(s.out, "    * %s: %s\n", c.Title, c.Text)
	}
}

// cards renders a message's attachments as titled snippets.
func cards(m coordinator.Message) []chefai.Card {
	var out []chefai.Card
	for _, r := range m.Recipes {
		text := r.Category
		if r.Description != "" {
			text = fmt.Sprintf("%s, %s", r.Category, r.Description)
		}
		out = append(out, chefai.Card{Title: fmt.Sprintf("%s [%s]", r.Name, r.ID), Text: text})
	}
	for _, it := range m.Ingredients {
		out = append(out, chefai.Card{Title: it.Name, Text: strings.TrimSpace(it.Quantity + " " + it.Unit)})
	}
	return out
}
