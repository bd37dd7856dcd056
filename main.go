package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/nihongoquest/internal/config"
	"github.com/example/nihongoquest/internal/database"
	"github.com/example/nihongoquest/internal/excel"
	"github.com/example/nihongoquest/internal/notify"
	"github.com/example/nihongoquest/internal/savestore"
	"github.com/example/nihongoquest/internal/scheduler"
	"github.com/example/nihongoquest/internal/session"
	"github.com/example/nihongoquest/pkg/logger"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/jmoiron/sqlx"
)

const usage = `Usage: nihongoquest <command> [flags]

Commands:
  list      list save slots
  new       create a save (-slot -name -difficulty)
  show      print the learning stats of a slot
  stats     print the full progression dashboard of a slot
  delete    delete a slot and its history
  import    introduce an SRS deck from .xlsx or .csv into a slot
  export    write a progress workbook for a slot
  history   print recent play sessions and answer accuracy
  run       keep a slot loaded with autosave and review reminders
`

type app struct {
	cfg   *config.Config
	data  *config.GameData
	store *savestore.Store
	db    *sqlx.DB
	out   io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogDir); err != nil {
		logger.Log.Warnf("File logging disabled: %v", err)
	}
	defer logger.Close()

	opts := savestore.DefaultOptions(cfg.SaveDir)
	opts.MaxSlots = cfg.MaxSaveSlots
	a := &app{
		cfg:   cfg,
		data:  config.DefaultGameData(),
		store: savestore.New(opts),
		out:   os.Stdout,
	}
	defer a.closeDB()

	if err := a.dispatch(os.Args[1], os.Args[2:]); err != nil {
		logger.Log.Errorf("%s failed: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list()
	case "new":
		return a.newGame(args)
	case "show":
		return a.show(args)
	case "stats":
		return a.stats(args)
	case "delete":
		return a.deleteSlot(args)
	case "import":
		return a.importDeck(args)
	case "export":
		return a.export(args)
	case "history":
		return a.history(args)
	case "run":
		return a.run(args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

// historyDB opens the answer history database once. It returns nil when
// history is disabled.
func (a *app) historyDB() (*database.History, error) {
	if !a.cfg.HistoryEnabled {
		return nil, nil
	}
	if a.db == nil {
		db, err := database.Connect(a.cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
	}
	return database.NewHistory(a.db), nil
}

func (a *app) closeDB() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) list() error {
	saves := a.store.ListAll()
	summaries := make([]models.SaveSummary, 0, len(saves))
	for slot := 1; slot <= a.store.MaxSlots(); slot++ {
		// Empty and unreadable slots are listed as nil
		if rec := saves[slot]; rec != nil {
			summaries = append(summaries, rec.Summary())
		}
	}
	return a.printJSON(summaries)
}

func (a *app) newGame(args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	slot := fs.Int("slot", 1, "save slot")
	name := fs.String("name", "Player", "player name")
	difficulty := fs.String("difficulty", string(models.DefaultDifficulty), "easy, normal, hard or extreme")
	fs.Parse(args)

	s := session.New(a.store, a.data, nil)
	rec, err := s.NewGame(*slot, *name, nil, models.Difficulty(*difficulty))
	if err != nil {
		return err
	}
	if err := s.Close(); err != nil {
		return err
	}
	return a.printJSON(rec.Summary())
}

func (a *app) show(args []string) error {
	s, err := a.openSlot("show", args)
	if err != nil {
		return err
	}
	defer s.Discard()
	stats, err := s.LearningStats()
	if err != nil {
		return err
	}
	return a.printJSON(stats)
}

func (a *app) stats(args []string) error {
	s, err := a.openSlot("stats", args)
	if err != nil {
		return err
	}
	defer s.Discard()
	stats, err := s.Stats()
	if err != nil {
		return err
	}
	return a.printJSON(stats)
}

// openSlot loads a slot for reading. Callers release it with Discard so the
// save file and its last_played stamp stay as they were.
func (a *app) openSlot(name string, args []string) (*session.Session, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	slot := fs.Int("slot", 1, "save slot")
	fs.Parse(args)

	s := session.New(a.store, a.data, nil)
	if err := s.LoadSlot(*slot); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) deleteSlot(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	slot := fs.Int("slot", 0, "save slot")
	fs.Parse(args)

	deleted, err := a.store.Delete(*slot)
	if err != nil {
		return err
	}
	history, err := a.historyDB()
	if err != nil {
		logger.Log.Warnf("History not cleared: %v", err)
	} else if history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := history.ForgetSlot(ctx, *slot); err != nil {
			logger.Log.Warnf("History not cleared: %v", err)
		}
	}
	if !deleted {
		return fmt.Errorf("slot %d has no save", *slot)
	}
	fmt.Fprintf(a.out, "Deleted slot %d\n", *slot)
	return nil
}

func (a *app) importDeck(args []string) error {
	cfg := excel.DefaultImportConfig()
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	slot := fs.Int("slot", 1, "save slot")
	fs.StringVar(&cfg.FilePath, "file", "", "deck file (.xlsx or .csv)")
	fs.StringVar(&cfg.ItemColumn, "item-col", cfg.ItemColumn, "column with the item")
	fs.StringVar(&cfg.ScriptColumn, "script-col", cfg.ScriptColumn, "column with the script")
	fs.StringVar(&cfg.SheetName, "sheet", "", "sheet name, first sheet when empty")
	fs.IntVar(&cfg.StartRow, "start-row", cfg.StartRow, "first data row")
	fs.Parse(args)

	if cfg.FilePath == "" {
		return fmt.Errorf("-file is required")
	}

	s := session.New(a.store, a.data, nil)
	if err := s.LoadSlot(*slot); err != nil {
		return err
	}
	defer s.Discard()

	result, err := excel.ImportDeck(cfg, s.Tracker())
	if err != nil {
		return err
	}
	if _, err := s.Save(); err != nil {
		return err
	}
	return a.printJSON(result)
}

func (a *app) export(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	slot := fs.Int("slot", 1, "save slot")
	out := fs.String("out", "progress.xlsx", "output workbook")
	fs.Parse(args)

	s := session.New(a.store, a.data, nil)
	if err := s.LoadSlot(*slot); err != nil {
		return err
	}
	defer s.Discard()

	stats, err := s.Stats()
	if err != nil {
		return err
	}
	if err := excel.ExportProgress(*out, s.Manager().Record(), stats); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Progress written to %s\n", *out)
	return nil
}

func (a *app) history(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	slot := fs.Int("slot", 1, "save slot")
	limit := fs.Int("limit", 10, "number of sessions")
	fs.Parse(args)

	history, err := a.historyDB()
	if err != nil {
		return err
	}
	if history == nil {
		return fmt.Errorf("history is disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sessions, err := history.Sessions.ListBySlot(ctx, *slot, *limit)
	if err != nil {
		return err
	}
	accuracy, err := history.Answers.AccuracyBySlot(ctx, *slot)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]interface{}{
		"sessions": sessions,
		"accuracy": accuracy,
	})
}

func (a *app) run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	slot := fs.Int("slot", 0, "save slot, most recent when 0")
	fs.Parse(args)

	var ledger session.Ledger
	history, err := a.historyDB()
	if err != nil {
		logger.Log.Warnf("Play history disabled: %v", err)
	} else if history != nil {
		ledger = history
	}

	s := session.New(a.store, a.data, ledger)
	if *slot == 0 {
		if *slot, err = s.Continue(); err != nil {
			return err
		}
	} else if err := s.LoadSlot(*slot); err != nil {
		return err
	}

	var notifier scheduler.Notifier
	if a.cfg.RemindersEnabled() {
		tg, err := notify.NewTelegram(a.cfg.TelegramToken, a.cfg.TelegramChatID)
		if err != nil {
			logger.Log.Warnf("Review reminders disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	sched := scheduler.New(a.cfg, s, s, notifier)
	if err := sched.Start(); err != nil {
		s.Close()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Log.Infof("Slot %d loaded. Press Ctrl+C to stop.", *slot)
	sig := <-sigChan
	logger.Log.Infof("Received signal: %v", sig)

	sched.Stop()
	if err := s.Close(); err != nil {
		return err
	}
	logger.Log.Info("Stopped successfully")
	return nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
