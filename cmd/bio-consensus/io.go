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

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/consensus/consensus"
	"github.com/grailbio/consensus/encoding/fasta"
	"github.com/grailbio/consensus/encoding/fastq"
	"github.com/klauspost/compress/gzip"
)

// readReads reads every record of the FASTA or FASTQ file at path.
func readReads(ctx context.Context, path string) (reads []consensus.Read, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(ctx); err == nil {
			err = cerr
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, "open", path)
		}
		defer gz.Close()
		r = gz
	}
	reads, err = parseReads(r)
	if err != nil {
		return nil, errors.E(err, "read", path)
	}
	return reads, nil
}

// parseReads reads FASTA or FASTQ, chosen by the first byte of the stream.
func parseReads(r io.Reader) ([]consensus.Read, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(1)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var reads []consensus.Read
	switch first[0] {
	case '>':
		recs, err := fasta.ReadAll(br)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			reads = append(reads, consensus.Read{Name: rec.Name, Seq: rec.Seq})
		}
	case '@':
		var (
			s   = fastq.NewScanner(br)
			rec fastq.Read
		)
		for s.Scan(&rec) {
			reads = append(reads, consensus.Read{Name: rec.Name(), Seq: strings.ToUpper(rec.Seq), Qual: rec.Qual})
		}
		if err := s.Err(); err != nil {
			return nil, err
		}
	default:
		return nil, errors.E(errors.Invalid, "input is neither FASTA nor FASTQ")
	}
	return reads, nil
}

// consensusRead renders res as a FASTQ record. Without QVs every base gets
// quality 0.
func consensusRead(name string, res *consensus.Result) fastq.Read {
	qvs := res.QVs
	if qvs == nil {
		qvs = make([]int, len(res.Sequence))
	}
	return fastq.NewRead(name, res.Sequence, qvs)
}

// writeConsensus writes res to path, or to stdout if path is empty.
func writeConsensus(ctx context.Context, path, name string, res *consensus.Result) error {
	rec := consensusRead(name, res)
	if path == "" {
		w := fastq.NewWriter(os.Stdout)
		if err := w.Write(&rec); err != nil {
			return err
		}
		return w.Flush()
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	once := errors.Once{}
	var dst io.Writer = out.Writer(ctx)
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(dst)
		dst = gz
	}
	w := fastq.NewWriter(dst)
	once.Set(w.Write(&rec))
	once.Set(w.Flush())
	if gz != nil {
		once.Set(gz.Close())
	}
	once.Set(out.Close(ctx))
	return once.Err()
}
