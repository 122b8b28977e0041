package main

import (
	"strings"

	"github.com/birbparty/pokenest/sdk"
	"github.com/spf13/cobra"
)

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <endpoint> <id-or-name>",
		Short:   "Fetch one resource",
		Example: "  pokectl get pokemon pikachu",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.client.GetJSON(cmd.Context(), args[0]+"/"+strings.ToLower(args[1]))
			if err != nil {
				return err
			}
			return a.print(node.Simplify())
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var params sdk.ListParams
	cmd := &cobra.Command{
		Use:     "list <endpoint>",
		Short:   "List one page of an endpoint",
		Example: "  pokectl list generation --limit 5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := sdk.NewResource[map[string]interface{}](a.client, args[0]).List(cmd.Context(), params)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	cmd.Flags().IntVar(&params.Limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "Items to skip")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Filter pokemon or generations",
	}

	var pq sdk.PokemonSearch
	pokemonCmd := &cobra.Command{
		Use:     "pokemon",
		Short:   "Search pokemon by name prefix, type and ability",
		Example: "  pokectl search pokemon --type fire --prefix char",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pq.NamePrefix = strings.ToLower(pq.NamePrefix)
			pq.Type = strings.ToLower(pq.Type)
			pq.Ability = strings.ToLower(pq.Ability)
			page, err := a.client.Search.Pokemon(cmd.Context(), pq)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	pokemonCmd.Flags().StringVar(&pq.NamePrefix, "prefix", "", "Name prefix")
	pokemonCmd.Flags().StringVar(&pq.Type, "type", "", "Type name")
	pokemonCmd.Flags().StringVar(&pq.Ability, "ability", "", "Ability name")
	pokemonCmd.Flags().IntVar(&pq.Limit, "limit", 20, "Page size")
	pokemonCmd.Flags().IntVar(&pq.Offset, "offset", 0, "Items to skip")

	var gq sdk.GenerationSearch
	generationCmd := &cobra.Command{
		Use:     "generation",
		Short:   "Search generations by name prefix and region",
		Example: "  pokectl search generation --region johto",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gq.NamePrefix = strings.ToLower(gq.NamePrefix)
			gq.Region = strings.ToLower(gq.Region)
			page, err := a.client.Search.Generation(cmd.Context(), gq)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	generationCmd.Flags().StringVar(&gq.NamePrefix, "prefix", "", "Name prefix")
	generationCmd.Flags().StringVar(&gq.Region, "region", "", "Main region name")
	generationCmd.Flags().IntVar(&gq.Limit, "limit", 20, "Page size")
	generationCmd.Flags().IntVar(&gq.Offset, "offset", 0, "Items to skip")

	searchCmd.AddCommand(pokemonCmd, generationCmd)
	return searchCmd
}

func (a *app) expandCmd() *cobra.Command {
	var (
		paths       []string
		depth       int
		maxRequests int
		concurrency int
	)
	cmd := &cobra.Command{
		Use:     "expand <path>",
		Short:   "Fetch a resource and inline the resources it references",
		Example: "  pokectl expand pokemon/pikachu --paths species,types.type --depth 2",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.client.GetJSON(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var opts []sdk.ExpandOption
			if len(paths) > 0 {
				opts = append(opts, sdk.WithPaths(paths...))
			}
			if depth > 0 {
				opts = append(opts, sdk.WithDepth(depth))
			}
			if maxRequests > 0 {
				opts = append(opts, sdk.WithMaxRequests(maxRequests))
			}
			if concurrency > 0 {
				opts = append(opts, sdk.WithConcurrency(concurrency))
			}

			expanded, err := a.client.ExpandConcurrent(cmd.Context(), root, opts...)
			if err != nil {
				return err
			}
			return a.print(expanded.Simplify())
		},
	}
	cmd.Flags().StringSliceVar(&paths, "paths", nil, "Dot paths to expand, comma separated")
	cmd.Flags().IntVar(&depth, "depth", 0, "Expansion rounds (default 1)")
	cmd.Flags().IntVar(&maxRequests, "max-requests", 0, "Cap on distinct URLs fetched")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "In-flight fetches per round")
	return cmd
}

func (a *app) rankingsCmd() *cobra.Command {
	var req sdk.RankingsRequest
	cmd := &cobra.Command{
		Use:     "rankings",
		Short:   "Rank the pokemon of a pokedex by base stats",
		Example: "  pokectl rankings --generation 1 --sort-by speed",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.client.Pokedex.Rankings(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(rows)
		},
	}
	cmd.Flags().StringVar(&req.Pokedex, "pokedex", "", "Pokedex name")
	cmd.Flags().IntVar(&req.Generation, "generation", 0, "Generation number")
	cmd.Flags().StringVar(&req.SortBy, "sort-by", "total", "total or a stat name")
	cmd.Flags().IntVar(&req.Concurrency, "concurrency", 0, "Parallel fetches")
	cmd.MarkFlagsMutuallyExclusive("pokedex", "generation")
	return cmd
}

func (a *app) detailCmd() *cobra.Command {
	var req sdk.DetailRequest
	cmd := &cobra.Command{
		Use:     "detail",
		Short:   "Show the pokedex entry of one pokemon",
		Example: "  pokectl detail --pokedex kanto --name pikachu",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = strings.ToLower(req.Name)
			view, err := a.client.Pokedex.Detail(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(view)
		},
	}
	cmd.Flags().StringVar(&req.Pokedex, "pokedex", "", "Pokedex name")
	cmd.Flags().IntVar(&req.Generation, "generation", 0, "Generation number")
	cmd.Flags().IntVar(&req.Number, "number", 0, "Regional or national number")
	cmd.Flags().StringVar(&req.Name, "name", "", "Species name")
	cmd.Flags().StringVar(&req.VersionGroup, "version-group", "", "Restrict moves to one version group")
	cmd.Flags().StringVar(&req.SpritePreference, "sprite", "", "Sprite preference")
	cmd.Flags().IntVar(&req.Concurrency, "concurrency", 0, "Parallel fetches")
	cmd.MarkFlagsMutuallyExclusive("pokedex", "generation")
	cmd.MarkFlagsMutuallyExclusive("number", "name")
	return cmd
}
