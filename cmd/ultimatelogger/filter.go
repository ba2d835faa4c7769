package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xef5000/UltimateLogger/logstore"
)

var ErrInvalidCondition = errors.New("condition must look like key|comparator|value")

func newFilterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "encode and decode filter strings",
	}

	cmd.AddCommand(newFilterEncodeCommand())
	cmd.AddCommand(newFilterDecodeCommand())

	return cmd
}

func newFilterEncodeCommand() *cobra.Command {
	var (
		recordType string
		andClauses []string
		orClauses  []string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "build a filter string from a type and key|comparator|value conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			builder := logstore.BuildFilter().OfType(recordType)

			for _, clause := range andClauses {
				c, err := parseClause(clause)
				if err != nil {
					return err
				}
				builder.Where(c.Key, c.Comparator, c.Value)
			}

			for _, clause := range orClauses {
				c, err := parseClause(clause)
				if err != nil {
					return err
				}
				builder.OrWhere(c.Key, c.Comparator, c.Value)
			}

			fmt.Fprintln(cmd.OutOrStdout(), logstore.Serialize(builder.Finalize()))

			return nil
		},
	}

	cmd.Flags().StringVar(&recordType, "type", "", "Log type to restrict to")
	cmd.Flags().StringArrayVar(&andClauses, "and", nil, "AND-joined condition key|comparator|value, repeatable")
	cmd.Flags().StringArrayVar(&orClauses, "or", nil, "OR-joined condition key|comparator|value, repeatable")

	return cmd
}

func newFilterDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <filter>",
		Short: "print the type and conditions of a filter string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := logstore.Deserialize(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "type: %s\n", filter.Type())
			for _, c := range filter.Conditions() {
				operator := logstore.And
				if c.IsOr() {
					operator = logstore.Or
				}
				fmt.Fprintf(out, "%s %s %s %s\n", operator, c.Key, c.Comparator, c.Value)
			}

			return nil
		},
	}
}

// parseClause reads exactly one condition with a known comparator.
func parseClause(clause string) (logstore.Condition, error) {
	conditions, err := logstore.ParseConditions(clause)
	if err != nil {
		return logstore.Condition{}, errors.Join(ErrInvalidCondition, err)
	}

	if len(conditions) != 1 {
		return logstore.Condition{}, fmt.Errorf("%w: %q", ErrInvalidCondition, clause)
	}

	if !conditions[0].Comparator.IsValid() {
		return logstore.Condition{}, fmt.Errorf("%w: unknown comparator %q", ErrInvalidCondition, conditions[0].Comparator)
	}

	return conditions[0], nil
}
