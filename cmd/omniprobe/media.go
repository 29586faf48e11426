package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paularlott/cli"

	"github.com/s33g/omni-probe/internal/app"
	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/media"
	"github.com/s33g/omni-probe/internal/toolcall"
	"github.com/s33g/omni-probe/internal/vision"
)

var assetArg = &cli.StringArg{
	Name:     "asset",
	Usage:    "Local file, file name under assets_dir, or cookbook URL",
	Required: true,
}

// resolveAsset prefers a local copy of ref; remote URLs without one are passed through
func resolveAsset(dir, ref string) string {
	p := media.ResolveAsset(dir, ref)
	if media.IsRemote(ref) {
		if _, err := os.Stat(p); err != nil {
			return ref
		}
	}
	return p
}

// runTask sends a media task to the selected model and returns the reply text
func runTask(ctx context.Context, cmd *cli.Command, a *app.App, task *media.Task) (string, error) {
	ref := a.ModelRef(cmd.GetString("model"))

	resp, err := a.Registry().Chat(ctx, ref, task.Messages, llm.Options{
		Temperature: task.Temperature,
		MaxTokens:   task.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", task.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Text(), nil
}

// mediaCommand builds a command that resolves the asset argument, builds a
// task and prints the reply through show
func mediaCommand(name, usage, description string, flags []cli.Flag,
	build func(cmd *cli.Command, asset string) (*media.Task, error),
	show func(cmd *cli.Command, asset, reply string) error,
) *cli.Command {
	return &cli.Command{
		Name:        name,
		Usage:       usage,
		Description: description,
		Flags:       flags,
		Arguments:   []cli.Argument{assetArg},
		MaxArgs:     cli.NoArgs,
		Run: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			asset := resolveAsset(a.Config().Defaults.AssetsDir, cmd.GetStringArg("asset"))

			task, err := build(cmd, asset)
			if err != nil {
				return err
			}

			reply, err := runTask(ctx, cmd, a, task)
			if err != nil {
				return err
			}

			if show == nil {
				fmt.Println(reply)
				return nil
			}
			return show(cmd, asset, reply)
		},
	}
}

var pingCmd = &cli.Command{
	Name:        "ping",
	Usage:       "List the models a provider serves",
	Description: "Check connectivity to the provider of the selected model and list the models it reports.",
	MaxArgs:     cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		client, _, err := a.Registry().Resolve(a.ModelRef(cmd.GetString("model")))
		if err != nil {
			return err
		}

		models, err := client.Models(ctx)
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}

		table := [][]string{{"ID", "Owner"}}
		for _, m := range models {
			table = append(table, []string{m.ID, m.OwnedBy})
		}
		fmt.Printf("Provider %s is up.\n\n", client.Provider().Name)
		printTable(table)

		addr, rtt, err := a.PingStorage(ctx)
		switch {
		case errors.Is(err, app.ErrStorageDisabled):
			fmt.Println("\nRedis: disabled")
		case err != nil:
			return err
		default:
			fmt.Printf("\nRedis: %s (%s)\n", addr, rtt.Round(time.Microsecond))
		}
		return nil
	},
}

var captionCmd = mediaCommand("caption", "Describe an audio clip",
	"Send an audio clip with a captioning prompt.",
	[]cli.Flag{
		&cli.StringFlag{
			Name:  "prompt",
			Usage: "Caption prompt.",
		},
	},
	func(cmd *cli.Command, asset string) (*media.Task, error) {
		return media.AudioCaption(asset, cmd.GetString("prompt"))
	},
	nil,
)

var askCmd = &cli.Command{
	Name:        "ask",
	Usage:       "Ask a question about an asset",
	Description: "Send an image, audio clip or video together with a free-form question.",
	Arguments: []cli.Argument{
		assetArg,
		&cli.StringArg{
			Name:     "question",
			Usage:    "The question to ask",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		asset := resolveAsset(a.Config().Defaults.AssetsDir, cmd.GetStringArg("asset"))
		task, err := media.Ask(asset, cmd.GetStringArg("question"))
		if err != nil {
			return err
		}

		reply, err := runTask(ctx, cmd, a, task)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	},
}

var ocrCmd = mediaCommand("ocr", "Read the text in an image",
	"Run OCR on an image. With --keys only the named fields are extracted as JSON.",
	[]cli.Flag{
		&cli.StringFlag{
			Name:  "prompt",
			Usage: "OCR prompt.",
		},
		&cli.StringSliceFlag{
			Name:  "keys",
			Usage: "Extract these keys into a JSON object, can be given multiple times.",
		},
	},
	func(cmd *cli.Command, asset string) (*media.Task, error) {
		prompt := cmd.GetString("prompt")
		if keys := cmd.GetStringSlice("keys"); len(keys) > 0 {
			prompt = media.KeyInformationPrompt(keys)
		}
		return media.OCR(asset, prompt)
	},
	nil,
)

var groundCmd = mediaCommand("ground", "Locate objects in an image",
	"Ask for bounding boxes of the given categories and print them in pixel coordinates when the image is local.",
	[]cli.Flag{
		&cli.StringFlag{
			Name:  "targets",
			Usage: "Comma separated categories to locate.",
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Print the model reply unparsed.",
		},
	},
	func(cmd *cli.Command, asset string) (*media.Task, error) {
		return media.Ground(asset, cmd.GetString("targets"))
	},
	func(cmd *cli.Command, asset, reply string) error {
		if cmd.GetBool("raw") {
			fmt.Println(reply)
			return nil
		}

		dets, err := vision.ParseDetections(reply)
		if err != nil {
			fmt.Println(reply)
			return fmt.Errorf("failed to parse detections: %w", err)
		}

		unit := "normalized"
		if !media.IsRemote(asset) {
			if w, h, err := vision.ImageSize(asset); err == nil {
				dets = vision.ScaleToImage(dets, w, h)
				unit = fmt.Sprintf("pixels, %dx%d", w, h)
			}
		}

		table := [][]string{{"Label", "Box", "Point"}}
		for _, d := range dets {
			point := ""
			if d.Point != nil {
				point = fmt.Sprintf("%.0f,%.0f", d.Point[0], d.Point[1])
			}
			table = append(table, []string{
				d.Label,
				fmt.Sprintf("%.0f,%.0f,%.0f,%.0f", d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]),
				point,
			})
		}
		fmt.Printf("%d detections (%s)\n\n", len(dets), unit)
		printTable(table)
		return nil
	},
)

var funcallCmd = mediaCommand("funcall", "Turn a spoken request into function calls",
	"Send a spoken request with the car assistant tools and print the <invoke> calls the model makes.",
	nil,
	func(cmd *cli.Command, asset string) (*media.Task, error) {
		return media.AudioFunctionCall(asset)
	},
	func(cmd *cli.Command, asset, reply string) error {
		calls := toolcall.ExtractInvocations(reply)
		if len(calls) == 0 {
			fmt.Println(reply)
			return nil
		}
		for _, c := range calls {
			args, err := json.Marshal(c.Arguments)
			if err != nil {
				return err
			}
			fmt.Printf("%s(%s)\n", c.Name, args)
		}
		return nil
	},
)

var describeVideoCmd = mediaCommand("describe-video", "Describe a video",
	"Describe a video. Unless --inline is given the request names the file instead of embedding it.",
	[]cli.Flag{
		&cli.StringFlag{
			Name:  "prompt",
			Usage: "Description prompt.",
		},
		&cli.BoolFlag{
			Name:  "inline",
			Usage: "Embed the video as a video_url part.",
		},
	},
	func(cmd *cli.Command, asset string) (*media.Task, error) {
		return media.VideoDescription(asset, cmd.GetString("prompt"), cmd.GetBool("inline"))
	},
	func(cmd *cli.Command, asset, reply string) error {
		fmt.Println(strings.TrimSpace(reply))
		return nil
	},
)
