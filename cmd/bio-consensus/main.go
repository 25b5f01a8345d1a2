// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
bio-consensus computes the consensus of a set of reads of the same molecule.
The reads are aligned into a partial-order graph to get a draft, the draft is
refined under the quiver error model, and the result is written as a single
FASTQ record whose qualities are the consensus QVs.

Input is FASTA or FASTQ, optionally gzipped. FASTQ qualities feed the error
model; FASTA reads are scored with flat qualities.

Sample usage:
bio-consensus \
    --out consensus.fq \
    --name my-amplicon \
    reads.fq.gz
*/

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/consensus/consensus"
	"github.com/grailbio/consensus/poa"
	"github.com/grailbio/consensus/quiver"
)

var (
	outPath       = flag.String("out", "", "Output FASTQ path; stdout if empty. A .gz suffix compresses the output")
	name          = flag.String("name", "consensus", "Name of the output record")
	configPath    = flag.String("config", "", "YAML quiver model configuration table; the built-in table if empty")
	chemistry     = flag.String("chemistry", consensus.DefaultOpts.Chemistry, "Configuration table entry used for every read")
	poaMode       = flag.String("poa-mode", consensus.DefaultOpts.PoaMode.String(), "Draft alignment mode: global, semiglobal or local")
	rangeFinder   = flag.Bool("range-finder", consensus.DefaultOpts.UseRangeFinder, "Band draft alignments around k-mer anchors")
	maxIterations = flag.Int("max-iterations", consensus.DefaultOpts.Refine.MaximumIterations, "Maximum number of refinement rounds")
	separation    = flag.Int("mutation-separation", consensus.DefaultOpts.Refine.MutationSeparation, "Minimum distance between mutations applied in one round")
	neighborhood  = flag.Int("mutation-neighborhood", consensus.DefaultOpts.Refine.MutationNeighborhood, "Distance around favorable mutations searched in the next round")
	refineRepeats = flag.Bool("refine-repeats", consensus.DefaultOpts.RefineRepeats, "Run a round of whole repeat-unit insertions and deletions")
	repeatLength  = flag.Int("repeat-length", consensus.DefaultOpts.RepeatLength, "Repeat unit length used by -refine-repeats")
	minRepeats    = flag.Int("min-repeat-elements", consensus.DefaultOpts.MinRepeatElements, "Minimum number of repeat units used by -refine-repeats")
	batched       = flag.Bool("batched", consensus.DefaultOpts.Batched, "Fill alignment matrices four rows at a time")
	sumProduct    = flag.Bool("sum-product", consensus.DefaultOpts.SumProduct, "Score reads by summing over alignments instead of taking the best")
	minReads      = flag.Int("min-reads", consensus.DefaultOpts.MinReads, "Fail if there are fewer reads than this")
	parallelism   = flag.Int("parallelism", 0, "Maximum number of concurrent scoring jobs; 0 = runtime.NumCPU()")
	skipQVs       = flag.Bool("skip-qvs", !consensus.DefaultOpts.ComputeQVs, "Write a flat quality string instead of computing consensus QVs")
)

func bioConsensusUsage() {
	fmt.Printf("Usage: %s [OPTIONS] readpath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioConsensusUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Expected exactly one positional argument (readpath), got %d", flag.NArg())
	}
	ctx := vcontext.Background()

	mode, err := poa.ParseMode(*poaMode)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := consensus.DefaultOpts
	opts.PoaMode = mode
	opts.UseRangeFinder = *rangeFinder
	opts.Chemistry = *chemistry
	opts.Refine.MaximumIterations = *maxIterations
	opts.Refine.MutationSeparation = *separation
	opts.Refine.MutationNeighborhood = *neighborhood
	opts.RefineRepeats = *refineRepeats
	opts.RepeatLength = *repeatLength
	opts.MinRepeatElements = *minRepeats
	opts.Batched = *batched
	opts.SumProduct = *sumProduct
	opts.MinReads = *minReads
	opts.Parallelism = *parallelism
	opts.ComputeQVs = !*skipQVs
	if *configPath != "" {
		if opts.ConfigTable, err = loadConfigTable(ctx, *configPath); err != nil {
			log.Fatalf("%v", err)
		}
	}

	reads, err := readReads(ctx, flag.Arg(0))
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("Read %d reads from %s", len(reads), flag.Arg(0))
	res, err := consensus.Compute(ctx, reads, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := writeConsensus(ctx, *outPath, *name, res); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}

func loadConfigTable(ctx context.Context, path string) (*quiver.ConfigTable, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	table, err := quiver.LoadConfigTable(in.Reader(ctx))
	if cerr := in.Close(ctx); err == nil {
		err = cerr
	}
	return table, err
}
