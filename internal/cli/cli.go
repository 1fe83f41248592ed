package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/SurinSeong/seasonal-ai-backend/internal/api"
	"github.com/pkg/errors"
)

type Options struct {
	Host      string
	Port      int
	Assistant bool
	// api.FormatHTML prints the rendered reply instead of the raw one
	Format string
}

func (o Options) endpoint() string {
	path := api.ChatPath
	if o.Assistant {
		path = api.AssistantPath
	}

	u := url.URL{
		Scheme: "http",
		Host:   o.Host + ":" + strconv.Itoa(o.Port),
		Path:   path,
	}
	if o.Format != "" {
		u.RawQuery = url.Values{"format": {o.Format}}.Encode()
	}
	return u.String()
}

func queryOf(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	input, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "failed to read from stdin")
	}
	return strings.TrimSpace(string(input)), nil
}

// Ask sends the words in args, or stdin when there are none, to a running
// server and prints its reply to out.
func Ask(options Options, args []string, stdin io.Reader, out io.Writer) error {
	query, err := queryOf(args, stdin)
	if err != nil {
		return err
	}

	body, err := json.Marshal(api.ChatRequest{Message: query})
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	resp, err := http.Post(options.endpoint(), "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("failed to get response: %s", resp.Status)
	}

	var result api.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}

	reply := result.Reply
	if options.Format == api.FormatHTML && result.ReplyHTML != "" {
		reply = result.ReplyHTML
	}
	_, err = fmt.Fprintln(out, reply)
	return err
}
