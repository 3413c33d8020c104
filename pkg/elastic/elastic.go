package elastic

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    es8 "github.com/elastic/go-elasticsearch/v8"
    "github.com/elastic/go-elasticsearch/v8/esutil"

    "vqconf/pkg/config"
)

type Config struct {
    URL      string
    Username string
    Password string
    Index    string
}

type Client struct {
    es    *es8.Client
    index string
}

// RunDocument is the indexed shape of one resolved run, flat enough to
// filter on hyperparameters across a fleet of experiments.
type RunDocument struct {
    Project       string    `json:"project"`
    Name          string    `json:"name"`
    CodebookSize  int       `json:"codebook_size"`
    HiddenSize    int       `json:"hidden_size"`
    Layers        int       `json:"num_hidden_layers"`
    LearningRate  float64   `json:"learning_rate"`
    WarmupSteps   int       `json:"warmup_steps"`
    BatchSize     int       `json:"per_gpu_batch_size"`
    MaxTrainSteps int       `json:"max_train_steps"`
    Precision     string    `json:"mixed_precision"`
    UseEMA        bool      `json:"use_ema"`
    ResolvedYAML  string    `json:"resolved_yaml"`
    IndexedAt     time.Time `json:"indexed_at"`
}

func New(cfg Config) (*Client, error) {
    if cfg.URL == "" {
        return nil, errors.New("elasticsearch URL is required")
    }
    index := cfg.Index
    if strings.TrimSpace(index) == "" {
        index = "vqconf_runs"
    }

    es, err := es8.NewClient(es8.Config{
        Addresses: []string{cfg.URL},
        Username:  cfg.Username,
        Password:  cfg.Password,
    })
    if err != nil {
        return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
    }

    // Lightweight ping
    if _, err := es.Info(); err != nil {
        return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
    }

    return &Client{es: es, index: index}, nil
}

func runDocument(cfg *config.Config) (*RunDocument, error) {
    resolved, err := config.Marshal(cfg)
    if err != nil {
        return nil, err
    }
    return &RunDocument{
        Project:       cfg.Experiment.Project,
        Name:          cfg.Experiment.Name,
        CodebookSize:  cfg.Model.VQModel.CodebookSize,
        HiddenSize:    cfg.Model.Generator.HiddenSize,
        Layers:        cfg.Model.Generator.NumHiddenLayers,
        LearningRate:  cfg.Optimizer.Params.LearningRate,
        WarmupSteps:   cfg.LRScheduler.Params.WarmupSteps,
        BatchSize:     cfg.Training.PerGPUBatchSize,
        MaxTrainSteps: cfg.Training.MaxTrainSteps,
        Precision:     cfg.Training.MixedPrecision,
        UseEMA:        cfg.Training.UseEMA,
        ResolvedYAML:  string(resolved),
        IndexedAt:     time.Now().UTC(),
    }, nil
}

// IndexRun indexes one resolved run document, keyed by project/name so
// re-validating a run overwrites its previous document.
func (c *Client) IndexRun(ctx context.Context, cfg *config.Config) error {
    doc, err := runDocument(cfg)
    if err != nil {
        return fmt.Errorf("failed to build run document: %w", err)
    }

    body, err := json.Marshal(doc)
    if err != nil {
        return fmt.Errorf("failed to marshal run document: %w", err)
    }

    res, err := c.es.Index(
        c.index,
        bytes.NewReader(body),
        c.es.Index.WithContext(ctx),
        c.es.Index.WithDocumentID(doc.Project+"__"+doc.Name),
    )
    if err != nil {
        return fmt.Errorf("failed to index run document: %w", err)
    }
    defer res.Body.Close()

    if res.IsError() {
        return fmt.Errorf("index request failed: %s", res.String())
    }
    return nil
}

// IndexConfigDir bulk-indexes every yaml run document found directly under
// dir. Documents that fail to load are skipped and reported together after
// the walk.
func (c *Client) IndexConfigDir(ctx context.Context, dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return fmt.Errorf("failed to read config dir: %w", err)
    }

    bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
        Client:     c.es,
        Index:      c.index,
        NumWorkers: 4,
    })
    if err != nil {
        return fmt.Errorf("failed to create bulk indexer: %w", err)
    }

    var skipped []string
    for _, entry := range entries {
        if entry.IsDir() {
            continue
        }
        ext := filepath.Ext(entry.Name())
        if ext != ".yaml" && ext != ".yml" {
            continue
        }

        cfg, err := config.Load(filepath.Join(dir, entry.Name()))
        if err != nil {
            skipped = append(skipped, fmt.Sprintf("%s: %v", entry.Name(), err))
            continue
        }

        doc, err := runDocument(cfg)
        if err != nil {
            skipped = append(skipped, fmt.Sprintf("%s: %v", entry.Name(), err))
            continue
        }
        body, err := json.Marshal(doc)
        if err != nil {
            skipped = append(skipped, fmt.Sprintf("%s: %v", entry.Name(), err))
            continue
        }

        item := esutil.BulkIndexerItem{
            Action:     "index",
            DocumentID: doc.Project + "__" + doc.Name,
            Body:       bytes.NewReader(body),
            OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, resp esutil.BulkIndexerResponseItem, err error) {
            },
        }
        if err := bi.Add(ctx, item); err != nil {
            return fmt.Errorf("bulk add failed: %w", err)
        }
    }

    if err := bi.Close(ctx); err != nil {
        return fmt.Errorf("bulk indexer close failed: %w", err)
    }

    if len(skipped) > 0 {
        return fmt.Errorf("skipped %d document(s): %s", len(skipped), strings.Join(skipped, "; "))
    }
    return nil
}
