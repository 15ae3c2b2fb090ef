// Command isomesh extracts a mesh from a built-in signed distance oracle,
// optionally cleans it, evaluates it against a dense reference and stores the
// metrics.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/config"
	"github.com/ngailapdi/isomesh/evaluate"
	"github.com/ngailapdi/isomesh/internal/monitoring"
	"github.com/ngailapdi/isomesh/meshgen"
	"github.com/ngailapdi/isomesh/oracle"
	"github.com/ngailapdi/isomesh/render"
	"github.com/ngailapdi/isomesh/store"
	"github.com/unixpickle/essentials"
)

func main() {
	var (
		configPath string
		shapeName  string
		outputPath string
		dumpPath   string
		dbPath     string
		runName    string
		sharpness  float64
		hard       bool
		gtRes      int
		numQueries int
		evaluateIt bool
		summary    bool
		quiet      bool
	)
	flag.StringVar(&configPath, "config", "", "path to JSON tuning file (defaults when empty)")
	flag.StringVar(&shapeName, "shape", "sphere", "oracle shape: "+shapeNames())
	flag.StringVar(&outputPath, "output", "output.stl", "output STL file (empty to skip)")
	flag.StringVar(&dumpPath, "dump", "", "field dump path, uniform extraction only")
	flag.StringVar(&dbPath, "db", "", "SQLite results database (empty to skip)")
	flag.StringVar(&runName, "name", "", "record name in the results database (defaults to the shape)")
	flag.Float64Var(&sharpness, "sharpness", 50, "logit scale of the occupancy oracle")
	flag.BoolVar(&hard, "indicator", false, "occupancy oracle returns hard 0/1 probabilities instead of smooth logits")
	flag.IntVar(&gtRes, "gt-res", 128, "resolution of the reference extraction")
	flag.IntVar(&numQueries, "gt-queries", 100000, "number of labeled volume queries")
	flag.BoolVar(&evaluateIt, "eval", true, "evaluate the mesh against the reference")
	flag.BoolVar(&summary, "summary", false, "print the mean of stored records for -name and exit")
	flag.BoolVar(&quiet, "quiet", false, "mute diagnostic logging")
	flag.Parse()

	if quiet {
		monitoring.SetLogger(nil)
	}
	if runName == "" {
		runName = shapeName
	}

	if summary {
		if dbPath == "" {
			essentials.Die("-summary requires -db")
		}
		db, err := store.Open(dbPath)
		essentials.Must(err)
		defer db.Close()
		mean, n, err := db.Summary(runName)
		essentials.Must(err)
		fmt.Printf("%d records for %q\n", n, runName)
		printRecord(mean)
		return
	}

	tuning := config.DefaultTuningConfig()
	if configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(configPath)
		essentials.Must(err)
	}
	cfg := tuning.Meshgen()
	if dumpPath != "" && !tuning.GetUniform() {
		essentials.Die("-dump requires \"uniform\": true in the tuning file")
	}

	shape, err := lookupShape(shapeName)
	essentials.Must(err)
	field := shape
	switch {
	case cfg.Kind == meshgen.Occupancy && hard:
		field = oracle.Logits(indicator{shape})
	case cfg.Kind == meshgen.Occupancy:
		field = isomesh.Occupancy(shape, sharpness)
	}

	var (
		mesh  *isomesh.Mesh
		stats meshgen.Stats
	)
	if tuning.GetUniform() {
		mesh, stats, err = meshgen.GenerateUniform(field, nil, cfg, dumpPath)
	} else {
		mesh, stats, err = meshgen.Generate(field, nil, cfg)
	}
	essentials.Must(err)
	if mesh.IsEmpty() {
		log.Printf("%s: level set is empty", shapeName)
	}
	if tuning.GetClean() {
		mesh = tuning.Cleaner().Clean(mesh)
	}
	if outputPath != "" && !mesh.IsEmpty() {
		essentials.Must(render.CreateSTL(outputPath, mesh))
		monitoring.Logf("wrote %d triangles to %s", mesh.Len(), outputPath)
	}

	if !evaluateIt {
		return
	}
	opts := tuning.EvalOptions()
	var sdfPred isomesh.Field
	if opts.Mode == evaluate.ModeSDF && cfg.Kind == meshgen.SDF {
		sdfPred = field
	}
	gt, err := groundTruth(shape, opts.Mode, gtRes, opts.NumSamples, numQueries, opts.Seed+1, sdfPred)
	essentials.Must(err)
	rec, err := evaluate.EvalMesh(mesh, gt, opts)
	essentials.Must(err)
	printRecord(rec)

	if dbPath != "" {
		db, err := store.Open(dbPath)
		essentials.Must(err)
		entry, err := db.Save(runName, rec, stats)
		if err != nil {
			db.Close()
			essentials.Die(err)
		}
		essentials.Must(db.Close())
		fmt.Println("record:", entry.ID)
	}
}

func printRecord(r evaluate.Record) {
	w := os.Stdout
	fmt.Fprintf(w, "mode:                 %s\n", r.Mode)
	fmt.Fprintf(w, "iou:                  %v\n", r.IoUValues())
	fmt.Fprintf(w, "chamfer:              %.6f\n", r.Chamfer)
	fmt.Fprintf(w, "completeness:         %.6f\n", r.Completeness)
	fmt.Fprintf(w, "accuracy:             %.6f\n", r.Accuracy)
	fmt.Fprintf(w, "normals:              %.6f\n", r.Normals)
	fmt.Fprintf(w, "normals completeness: %.6f\n", r.NormalsCompleteness)
	fmt.Fprintf(w, "normals accuracy:     %.6f\n", r.NormalsAccuracy)
	for i, t := range evaluate.FScoreThresholds {
		fmt.Fprintf(w, "fscore@%-5g          %.4f (precision %.4f, recall %.4f)\n", t, r.FScore[i], r.Precision[i], r.Recall[i])
	}
}
